// Package apiclient is the authenticated HTTP client shared by the dine apps.
//
// # Overview
//
// Every request leaving a Client goes through Transport, an http.RoundTripper
// that:
//  1. attaches the static X-API-KEY header and, unless the path is an
//     unauthenticated auth endpoint (see IsAuthExempt), the current access
//     token as a bearer credential;
//  2. on a 401, refreshes the access token with the stored refresh token and
//     replays the request once with the new token;
//  3. while a refresh is in flight, queues every other request that fails
//     with 401 and replays them in arrival order once the new token is
//     published, so at most one refresh call is ever in flight;
//  4. when the refresh cannot happen (no refresh token, endpoint failure),
//     clears both tokens, invokes the logout handler once, and hands every
//     affected caller its original 401 response.
//
// A request sent with a token that a completed refresh has since replaced
// is replayed once with the current token instead of starting another
// refresh. If that replay is also rejected, the caller gets the 401 as is:
// no further refresh runs and the session is not logged out.
//
// # Error Handling
//
// Transport never substitutes the refresh error for the caller's response.
// Client.DoJSON turns non-2xx responses into *APIError, which matches
// ErrUnauthorized, ErrForbidden and ErrNotFound with errors.Is.
//
// # Concurrency
//
// Transport and Client are safe for concurrent use. The refresh state and the
// pending queue belong to one Transport; build one Client per session.
package apiclient
