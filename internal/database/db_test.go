package database

import (
	"strings"
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxIdleConns: 100}.withDefaults()
	if o.MaxOpenConns != 25 || o.MaxIdleConns != 25 {
		t.Fatalf("pool = %d/%d", o.MaxOpenConns, o.MaxIdleConns)
	}
	if o.ConnMaxLifetime != 30*time.Minute || o.PingTimeout != 5*time.Second {
		t.Fatalf("timeouts = %v/%v", o.ConnMaxLifetime, o.PingTimeout)
	}
}

func TestDSN(t *testing.T) {
	dsn := Options{User: "studio", Pass: "pw", Host: "db", Port: "3306", Name: "studio"}.DSN()
	for _, want := range []string{"studio:pw@tcp(db:3306)/studio", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}
}
