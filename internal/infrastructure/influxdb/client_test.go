package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWriteReading_Disconnected(t *testing.T) {
	c := &Client{connected: false}

	// Must be a silent no-op, not a panic on the nil write API.
	c.WriteReading("site-1", "hall-trv", "temperature", 21.5, "C", time.Now())
	c.WritePoint("counters", map[string]string{"name": "ingest"}, map[string]interface{}{"value": 1.0})
}

func TestFlush_AfterClose(t *testing.T) {
	c := &Client{}
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
