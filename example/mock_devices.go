package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// mockAircon simulates a climate unit speaking the comma-separated
// key=value dialect. Writes are applied to the control state so flushed
// commands show up in the next confirmation read.
type mockAircon struct {
	mu       sync.Mutex
	name     string
	controls map[string]string
}

func newMockAircon(name string) *mockAircon {
	return &mockAircon{
		name: name,
		controls: map[string]string{
			"pow":   "1",
			"mode":  "4",
			"stemp": "20.0",
			"shum":  "0",
		},
	}
}

// StartMockAircon runs the climate unit on addr.
// Call this in a goroutine before creating panelcore devices.
func StartMockAircon(addr, name string) {
	a := newMockAircon(name)
	mux := http.NewServeMux()

	mux.HandleFunc("/common/basic_info", func(w http.ResponseWriter, r *http.Request) {
		encoded := ""
		for _, b := range []byte(a.name) {
			encoded += fmt.Sprintf("%%%02x", b)
		}
		fmt.Fprintf(w, "ret=OK,type=aircon,name=%s", encoded)
	})

	mux.HandleFunc("/aircon/get_sensor_info", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		pow := a.controls["pow"]
		a.mu.Unlock()

		cmpfreq := 0
		if pow == "1" {
			cmpfreq = 20 + rand.Intn(20)
		}
		htemp := 20.0 + rand.Float64()
		fmt.Fprintf(w, "ret=OK,htemp=%.1f,otemp=15.0,cmpfreq=%d", htemp, cmpfreq)
	})

	mux.HandleFunc("/aircon/get_control_info", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		body := fmt.Sprintf("ret=OK,pow=%s,mode=%s,stemp=%s,shum=%s",
			a.controls["pow"], a.controls["mode"], a.controls["stemp"], a.controls["shum"])
		a.mu.Unlock()
		fmt.Fprint(w, body)
	})

	mux.HandleFunc("/aircon/set_control_info", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				a.controls[key] = values[0]
			}
		}
		a.mu.Unlock()
		fmt.Fprint(w, "ret=OK")
	})

	_ = http.ListenAndServe(addr, mux)
}

// StartMockController runs an energy controller on addr: JSON bodies under
// /status, /controls, and /recent-values, with a sine-wave production
// curve so the chart has something to show.
func StartMockController(addr string) {
	var (
		mu       sync.Mutex
		controls = map[string]string{
			"operation": "on",
			"min_load":  "200",
			"max_load":  "2400",
		}
	)
	start := time.Now()

	production := func(at time.Time) float64 {
		phase := at.Sub(start).Seconds() / 60 * 2 * math.Pi
		return 1500 + 1000*math.Sin(phase)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		fmt.Fprintf(w, `{"production": %.0f, "consumption": %.0f}`,
			production(now), 600+200*rand.Float64())
	})

	mux.HandleFunc("/controls", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		if query := r.URL.Query(); len(query) > 0 {
			for key, values := range query {
				if _, known := controls[key]; !known {
					fmt.Fprintf(w, `{"errors": {%q: "invalid key"}}`, key)
					return
				}
				controls[key] = values[0]
			}
		}
		fmt.Fprintf(w, `{"operation": %q, "min_load": %s, "max_load": %s}`,
			controls["operation"], controls["min_load"], controls["max_load"])
	})

	mux.HandleFunc("/recent-values", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		rows := ""
		for i := 60; i > 0; i-- {
			at := now.Add(-time.Duration(i) * 3 * time.Second)
			if rows != "" {
				rows += ","
			}
			rows += fmt.Sprintf("[%s, %.0f, %.0f]",
				strconv.FormatInt(at.Unix(), 10), production(at), 700.0)
		}
		fmt.Fprintf(w, `{"headers": ["timestamp", "production", "consumption"], "values": [%s]}`, rows)
	})

	_ = http.ListenAndServe(addr, mux)
}
