package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 5 * time.Second

// Report is the outcome of probing one target.
type Report struct {
	Target    string
	ScrapedAt time.Time

	// Healthy is true when /api/v1/health answered 200.
	Healthy bool

	// Counters holds the summarised blockcache_* values, keyed like
	// "refresh_ok" or "readthrough_origin". Absent families are omitted.
	Counters map[string]float64

	// Err is non-nil if either call failed outright.
	Err error
}

// String renders the report as one line.
func (r Report) String() string {
	state := "UNHEALTHY"
	if r.Healthy {
		state = "OK"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-9s %s", state, r.Target)
	keys := make([]string, 0, len(r.Counters))
	for k := range r.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%g", k, r.Counters[k])
	}
	if r.Err != nil {
		fmt.Fprintf(&b, " err=%q", r.Err.Error())
	}
	return b.String()
}

// Prober probes targets with a shared HTTP client.
type Prober struct {
	client *http.Client
}

// New returns a Prober whose calls are bounded by timeout (default 5s).
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{client: &http.Client{Timeout: timeout}}
}

// Probe checks the target at baseURL, e.g. "http://127.0.0.1:3030".
func (p *Prober) Probe(ctx context.Context, baseURL string) Report {
	base := strings.TrimRight(baseURL, "/")
	r := Report{Target: base, ScrapedAt: time.Now().UTC(), Counters: map[string]float64{}}

	healthy, err := p.health(ctx, base+"/api/v1/health")
	r.Healthy = healthy
	if err != nil {
		r.Err = fmt.Errorf("health: %w", err)
		return r
	}

	mfs, err := p.fetchMetrics(ctx, base+"/metrics")
	if err != nil {
		r.Err = fmt.Errorf("metrics: %w", err)
		return r
	}
	summarise(mfs, r.Counters)
	return r
}

func (p *Prober) health(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return resp.StatusCode == http.StatusOK, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func (p *Prober) fetchMetrics(ctx context.Context, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a text exposition. A partial parse that produced
// families is accepted.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// byLabel lists the families that are split by one label in the summary.
var byLabel = []struct {
	family, label, prefix string
}{
	{"blockcache_refresh_total", "result", "refresh"},
	{"blockcache_cache_lookups_total", "result", "lookups"},
	{"blockcache_readthrough_total", "source", "readthrough"},
	{"blockcache_peer_failures_total", "reason", "peer_failures"},
}

// totals lists families summed across all series.
var totals = map[string]string{
	"blockcache_ingested_events_total": "ingested",
}

func summarise(mfs map[string]*dto.MetricFamily, out map[string]float64) {
	for _, b := range byLabel {
		mf, ok := mfs[b.family]
		if !ok {
			continue
		}
		for value, v := range splitFamily(mf, b.label) {
			out[b.prefix+"_"+value] = v
		}
	}
	for family, key := range totals {
		if mf, ok := mfs[family]; ok {
			out[key] = sumFamily(mf)
		}
	}
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// splitFamily sums a family's series grouped by the value of label.
func splitFamily(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		key := "none"
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += value(m)
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
