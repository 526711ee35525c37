// Command spoq-dashboard is a standalone debug dashboard: spoq
// instances forward diagnostic events to it over HTTP, it fans them
// out to connected browsers over WebSocket, and it exposes Prometheus
// counters for event volume by type. It is entirely peripheral to the
// core client — nothing it does affects a running conversation.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spoq-dev/spoq/internal/debugbus"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spoq_dashboard_events_total",
	Help: "Diagnostic events received from spoq clients, by event type.",
}, []string{"type"})

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7890", "listen address")
	flag.Parse()

	bus := debugbus.New()
	engine := gin.Default()

	engine.POST("/ingest", ingestHandler(bus))
	engine.GET("/ws", wsHandler(bus))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/", indexHandler)

	log.Printf("spoq-dashboard listening on %s", *addr)
	if err := engine.Run(*addr); err != nil {
		log.Fatalf("dashboard server exited: %v", err)
	}
}

func ingestHandler(bus *debugbus.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event debugbus.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		eventsTotal.WithLabelValues(event.Event.Type).Inc()
		bus.Emit(event.ThreadID, event.Event.Type, event.Event.Detail)
		c.Status(http.StatusAccepted)
	}
}

func wsHandler(bus *debugbus.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		events, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		for event := range events {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func indexHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>spoq dashboard</title></head>
<body>
<h1>spoq debug dashboard</h1>
<pre id="log"></pre>
<script>
const log = document.getElementById("log");
const ws = new WebSocket("ws://" + location.host + "/ws");
ws.onmessage = (msg) => {
  const event = JSON.parse(msg.data);
  log.textContent += JSON.stringify(event) + "\n";
};
</script>
</body>
</html>`
