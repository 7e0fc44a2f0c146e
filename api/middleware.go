package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the ID assigned to the request, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDs is negroni middleware that tags every request with an ID. A
// valid ID sent by the client is kept.
type RequestIDs struct{}

func (RequestIDs) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	id := r.Header.Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
}

// Logger is negroni middleware that logs each request with its status,
// size and duration.
type Logger struct{}

func (Logger) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	if rw, ok := w.(negroni.ResponseWriter); ok {
		log.Infof("%s %s %s %d %d %s", RequestID(r.Context()), r.Method, r.URL.Path, rw.Status(), rw.Size(), time.Since(start))
		return
	}
	log.Infof("%s %s %s %s", RequestID(r.Context()), r.Method, r.URL.Path, time.Since(start))
}

// Recovery is negroni middleware that turns a panic into a 500.
type Recovery struct {
	StackSize int
}

func (rec Recovery) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	defer func() {
		if err := recover(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			size := rec.StackSize
			if size <= 0 {
				size = 8 << 10
			}
			stack := make([]byte, size)
			stack = stack[:runtime.Stack(stack, false)]
			log.Errorf("%s %s %s: panic: %v\n%s", RequestID(r.Context()), r.Method, r.URL.Path, err, stack)
		}
	}()
	next(w, r)
}
