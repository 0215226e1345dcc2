package platforms

import (
	"context"
	"regexp"
	"time"

	"github.com/couchwatch/couchwatch/api/schemas"
)

// fakeStaticPage serves canned answers for the read-only page probes the
// adapters use. Mutating calls succeed silently.
type fakeStaticPage struct {
	url     string
	visible map[string]bool
	counts  map[string]int
	// attrs is keyed "selector\x00attribute".
	attrs  map[string]string
	evalFn func(js string, out any) error
}

var _ schemas.Page = (*fakeStaticPage)(nil)

func (p *fakeStaticPage) Navigate(ctx context.Context, url string) error { p.url = url; return nil }
func (p *fakeStaticPage) URL(ctx context.Context) (string, error)        { return p.url, nil }
func (p *fakeStaticPage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return nil
}
func (p *fakeStaticPage) IsVisible(ctx context.Context, sel string) (bool, error) {
	return p.visible[sel], nil
}
func (p *fakeStaticPage) Count(ctx context.Context, sel string) (int, error) {
	return p.counts[sel], nil
}
func (p *fakeStaticPage) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	v, ok := p.attrs[sel+"\x00"+name]
	return v, ok, nil
}
func (p *fakeStaticPage) Fill(ctx context.Context, sel, value string, timeout time.Duration) error {
	return nil
}
func (p *fakeStaticPage) Click(ctx context.Context, sel string, timeout time.Duration) error {
	return nil
}
func (p *fakeStaticPage) ClickText(ctx context.Context, sel, text string) (bool, error) {
	return true, nil
}
func (p *fakeStaticPage) WaitURLMatch(ctx context.Context, pattern *regexp.Regexp, timeout time.Duration) error {
	return nil
}
func (p *fakeStaticPage) WaitDOMContentLoaded(ctx context.Context, timeout time.Duration) error {
	return nil
}
func (p *fakeStaticPage) WaitStable(ctx context.Context) error                { return nil }
func (p *fakeStaticPage) LazyScroll(ctx context.Context, steps, px int) error { return nil }
func (p *fakeStaticPage) Evaluate(ctx context.Context, js string, out any) error {
	if p.evalFn != nil {
		return p.evalFn(js, out)
	}
	return nil
}
func (p *fakeStaticPage) Screenshot(ctx context.Context) ([]byte, error) { return []byte("png"), nil }
func (p *fakeStaticPage) SessionState(ctx context.Context) (*schemas.SessionState, error) {
	return &schemas.SessionState{}, nil
}
