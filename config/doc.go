// Package config holds the startup settings of the conversation store.
//
// Values are resolved once, in order: built-in defaults, a .env file,
// CHATSHARD_* environment variables, then functional options.
package config
