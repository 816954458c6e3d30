package mockbank

import (
	"net/http"
	"sync"
)

type faultKind int

const (
	faultStatus faultKind = iota
	faultDrop
)

type fault struct {
	kind   faultKind
	status int
}

// faults is a FIFO of faults applied to the next requests.
type faults struct {
	mu    sync.Mutex
	queue []fault
}

func (f *faults) push(n int, ft fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.queue = append(f.queue, ft)
	}
}

func (f *faults) pop() (fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return fault{}, false
	}
	ft := f.queue[0]
	f.queue = f.queue[1:]
	return ft, true
}

func (f *faults) reset() {
	f.mu.Lock()
	f.queue = nil
	f.mu.Unlock()
}

// middleware applies the next queued fault, if any, instead of the handler.
func (f *faults) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ft, ok := f.pop()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		switch ft.kind {
		case faultDrop:
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					_ = conn.Close()
					return
				}
			}
			writeError(w, http.StatusBadGateway, CodeInjectedFault, "connection dropped")
		default:
			writeError(w, ft.status, CodeInjectedFault, "injected fault")
		}
	})
}
