// Package users stores accounts for the sibilus site.
//
// Email addresses are kept only as a SHA-256 of the normalised address, and
// passwords as bcrypt hashes. Logging in, and turning a login into a session
// token, lives in the auth subpackage; the signing key and token claims live
// in util.
package users
