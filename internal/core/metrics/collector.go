package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 将 BandwidthCounter 导出为 prometheus 指标
//
//   - natlink_bytes_sent_total{kind}
//   - natlink_bytes_received_total{kind}
//   - natlink_send_rate_bytes{kind}
//   - natlink_receive_rate_bytes{kind}
type Collector struct {
	bwc *BandwidthCounter

	sent     *prometheus.Desc
	received *prometheus.Desc
	sendRate *prometheus.Desc
	recvRate *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建 Collector
func NewCollector(bwc *BandwidthCounter) *Collector {
	labels := []string{"kind"}
	return &Collector{
		bwc:      bwc,
		sent:     prometheus.NewDesc("natlink_bytes_sent_total", "Bytes sent per socket kind.", labels, nil),
		received: prometheus.NewDesc("natlink_bytes_received_total", "Bytes received per socket kind.", labels, nil),
		sendRate: prometheus.NewDesc("natlink_send_rate_bytes", "Send rate over the last 60s in bytes per second.", labels, nil),
		recvRate: prometheus.NewDesc("natlink_receive_rate_bytes", "Receive rate over the last 60s in bytes per second.", labels, nil),
	}
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.received
	ch <- c.sendRate
	ch <- c.recvRate
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for kind, st := range c.bwc.ByKind() {
		ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(st.TotalOut), kind)
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(st.TotalIn), kind)
		ch <- prometheus.MustNewConstMetric(c.sendRate, prometheus.GaugeValue, st.RateOut, kind)
		ch <- prometheus.MustNewConstMetric(c.recvRate, prometheus.GaugeValue, st.RateIn, kind)
	}
}

// NewRegistry 创建注册了 Collector 与 Go 运行时指标的 Registry
func NewRegistry(bwc *BandwidthCounter) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(bwc)); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return reg, nil
}

// Handler 返回 /metrics 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
