// Package httpclient builds requests against the API under test and owns the
// per-worker HTTP transport.
//
// Each simulated user gets a [Session]: a [RequestBuilder] bound to the base
// URL plus an *http.Client created by [NewClient] with its own transport.
// Paths are appended to the base URL, so a base such as
// http://backend:8000/api/v1 keeps its prefix:
//
//	s, err := httpclient.NewSession(httpclient.SessionOptions{
//		BaseURL: cfg.TargetURL,
//		Timeout: cfg.Timeout,
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	req, err := s.NewRequest(ctx, http.MethodGet, "/files", url.Values{"per_page": {"20"}}, nil)
//
// Static bearer tokens are injected through an [AuthProvider], see
// [github.com/figscale/loadgen/internal/auth].
package httpclient
