// Package client keeps the storefront's client-side auth session.
//
// A [SessionManager] owns one [Session] and talks to the auth API with
// ambient cookie credentials held by a [CredentialStore]. Identity reads
// follow a bounded policy: a 401 triggers at most one token refresh per
// expired-credential response, then a single retry. A failed refresh leaves
// the session anonymous.
//
//	m := client.New("https://shop.example.com",
//		client.WithCredentialStore(client.NewMemoryCredentials()),
//	)
//	m.Bootstrap(ctx)
//	if res := m.Login(ctx, "u1", "secret"); !res.Success {
//		fmt.Println(res.Message)
//	}
//
// Login, Signup and AdminLogin never return errors. Their outcome is a
// [Result] whose Message is ready to show to a shopper.
package client
