package capture

import "errors"

// Reason tags a degraded capture. The empty Reason means success.
type Reason string

const (
	ReasonTimeout       Reason = "timeout"
	ReasonRenderFailure Reason = "render_failure"
	ReasonBlank         Reason = "blank"
	ReasonCaptureError  Reason = "capture_error"
)

var ErrBlank = errors.New("screenshot is blank")

// Result is either a validated PNG or a degraded outcome with its reason.
type Result struct {
	Image  []byte
	Reason Reason
	Err    error
}

func Success(img []byte) Result { return Result{Image: img} }

func Degraded(reason Reason, err error) Result { return Result{Reason: reason, Err: err} }

func (r Result) OK() bool { return r.Reason == "" && len(r.Image) > 0 }

// Status is the short label used in logs, metrics and the outcome table.
func (r Result) Status() string {
	if r.OK() {
		return "ok"
	}
	if r.Reason == "" {
		return string(ReasonRenderFailure)
	}
	return string(r.Reason)
}

// Describe is the user-facing wording for a degraded capture.
func (r Result) Describe() string {
	switch r.Reason {
	case "":
		if r.OK() {
			return "attached"
		}
		return "render failed"
	case ReasonTimeout:
		return "timed out"
	case ReasonBlank:
		return "page rendered blank"
	case ReasonRenderFailure:
		return "render failed"
	default:
		return "browser error"
	}
}
