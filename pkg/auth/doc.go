/*
Package auth implements request authentication.

Two credential paths feed one Gate: a Bearer JWT (HS256, signed with the
server secret) and a session cookie backed by the user_sessions table.
The Authorization header, when present, always wins; a malformed header
fails the request even if a valid cookie rides along. Both paths resolve
the user and reject deactivated accounts with forbidden rather than
unauthorized.

Session hits touch last_activity so idle expiry is measured from real
use. Passwords are bcrypt hashes; comparison is constant time.

Gate.Middleware adapts the gate to chi, stashing the authenticated user
in the request context for handlers to read with UserFromContext.
*/
package auth
