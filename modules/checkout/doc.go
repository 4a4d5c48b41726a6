// Package checkout is the HTTP surface of the billing service: the page a
// payment provider redirects to after checkout, and the endpoints a signed-in
// user calls to list or cancel subscriptions.
//
// Authentication is external. A UserResolver maps each request to the
// signed-in user; requests without one get 401.
//
//	h := checkout.NewHandler(svc, checkout.HeaderUserResolver("X-User-ID"), checkout.WithLogger(log))
//	r.Mount("/billing", h.Handle())
package checkout
