// Package audit records control actions (connects, commands, pairing,
// app launches) in SQLite and serves them back page by page.
//
// Entries are written asynchronously by a Recorder registered as a
// session observer, so a slow disk never delays a remote command.
// Pairing credentials and PINs are never written.
package audit
