// Package domain contains core concepts of the chat relay.
// This file defines User identities and related rules.
// No runtime, network, or UI logic should be added here.
package domain

const DefaultLang = "en"

// User is a chat identity. Created on first join when no id is supplied,
// immutable afterward.
type User struct {
	ID   string
	Name string
	Lang string // 2-letter ISO 639-1 code, defaults to "en"
}
