package observability

import "time"

// PeerRecorder records external_requests_* for calls made to one downstream peer.
type PeerRecorder struct {
	peer     string
	calls    Counter
	duration Histogram
}

func NewPeerRecorder(tel Observability, peer string) PeerRecorder {
	_, _, metrics := Resolve(tel)
	return PeerRecorder{
		peer:     peer,
		calls:    metrics.Counter(MExternalRequests),
		duration: metrics.Histogram(MExternalRequestDuration),
	}
}

func (r PeerRecorder) Observe(endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.calls.Add(1, L("peer", r.peer), L("endpoint", endpoint), L("outcome", outcome))
	r.duration.Observe(time.Since(start).Seconds(), L("peer", r.peer), L("endpoint", endpoint))
}

// Done is Observe for deferred use; errp is read when the surrounding call returns.
func (r PeerRecorder) Done(endpoint string, start time.Time, errp *error) {
	r.Observe(endpoint, start, *errp)
}
