// layer is an authentication layer for a server-rendered site that signs users
// in with an OIDC provider and calls a separate backend API on their behalf.
//
// The packages split the work the same way a request does:
//
//   - config merges the layer's and the provider module's settings.
//   - route decides which paths need authentication.
//   - jwt tells usable credentials from expired or malformed ones.
//   - guard redirects page navigations that lack a usable credential, on the
//     server and in the browser.
//   - provider runs the authorization code flow and keeps the tokens in cookies.
//   - proxy picks a credential and relays API calls to the backend.
//   - session serves the backend profile of the signed in user.
//   - metrics counts guard and proxy outcomes.
//
// See examples/gateway for a server wiring all of them together.
package layer
