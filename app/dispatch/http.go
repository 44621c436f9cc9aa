package dispatch

import (
	"io"
	"net/http"

	"github.com/umputun/valor/lib"
)

// FromHTTPRequest adapts a net/http.Request into a lib.HTTPMessage. This is
// the one conversion the out-of-scope transport collaborator (§1, §6) needs
// to bridge into dispatch; core packages otherwise never import net/http
// for control flow, only for the Header/URL value types lib.Request reuses.
func FromHTTPRequest(r *http.Request) lib.Message {
	return lib.HTTPMessage{Request: &lib.Request{
		Method: r.Method,
		URL:    r.URL,
		Header: r.Header,
		Body:   r.Body,
	}}
}

// WriteAnswer writes a lib.Answer to a net/http.ResponseWriter. PongAnswer
// has no HTTP shape and is written as an empty 200 OK.
func WriteAnswer(w http.ResponseWriter, answer lib.Answer) error {
	switch a := answer.(type) {
	case lib.HTTPAnswer:
		for k, vv := range a.Response.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		status := a.Response.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if a.Response.Body == nil {
			return nil
		}
		defer a.Response.Body.Close() //nolint:errcheck
		_, err := io.Copy(w, a.Response.Body)
		return err
	case lib.PongAnswer:
		w.WriteHeader(http.StatusOK)
		return nil
	default:
		w.WriteHeader(http.StatusInternalServerError)
		return nil
	}
}

// WriteError writes a lib.Error to a net/http.ResponseWriter, translating
// the three error kinds to status codes the way a transport collaborator
// would (§7 "Propagation").
func WriteError(w http.ResponseWriter, err error) {
	e, ok := err.(*lib.Error)
	if !ok {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch e.Kind {
	case lib.ErrHTTP:
		http.Error(w, e.Message, e.Status)
	case lib.ErrRuntime:
		http.Error(w, e.Error(), http.StatusInternalServerError)
	case lib.ErrNotSupported:
		http.Error(w, "not supported", http.StatusNotImplemented)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
