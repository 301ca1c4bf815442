package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/nodes"
	"github.com/AaronLay10/Cadence/internal/playhead"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/studio"
)

// Controller is the studio surface the operator endpoints drive.
type Controller interface {
	Description() graph.Description
	NodeOutputs(id string) (node.Outputs, error)
	Outputs() map[string]node.Outputs
	SetProperty(nodeID, name string, v any) error
	AddNode(typ, id string, props map[string]any, pos node.Position) (string, error)
	RemoveNode(id string) error
	Connect(from, to string) (graph.Edge, error)
	Disconnect(edgeID string) error
	SaveGraph(ctx context.Context, name string) error
	Start()
	Stop()
	Reset()
	Seek(t float64) error
	PlayheadState() playhead.State
}

var (
	ctrlMu     sync.RWMutex
	controller Controller
)

// SetController sets the studio used by the graph and playhead endpoints.
func SetController(c Controller) {
	ctrlMu.Lock()
	defer ctrlMu.Unlock()
	controller = c
}

func getController() Controller {
	ctrlMu.RLock()
	defer ctrlMu.RUnlock()
	return controller
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "cadence",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeJSON(w, http.StatusOK, resp)
}

// eventsHandler returns the in-memory event buffer. With ?source=db and
// Postgres configured it returns the newest persisted events instead,
// limited by ?limit.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "db" {
		client := events.GetPostgresClient()
		if client == nil {
			writeError(w, http.StatusServiceUnavailable, "postgres not configured")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := client.Query(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rows)
		return
	}
	writeJSON(w, http.StatusOK, events.Snapshot())
}

type OperatorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type PropertyRequest struct {
	NodeID   string `json:"node_id"`
	Property string `json:"property"`
	Value    any    `json:"value"`
}

type ConnectRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ConnectResponse struct {
	OK   bool       `json:"ok"`
	Edge graph.Edge `json:"edge"`
}

type DisconnectRequest struct {
	EdgeID string `json:"edge_id"`
}

type AddNodeRequest struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Position   node.Position  `json:"position"`
}

type AddNodeResponse struct {
	OK     bool   `json:"ok"`
	NodeID string `json:"node_id"`
}

type RemoveNodeRequest struct {
	NodeID string `json:"node_id"`
}

type SaveRequest struct {
	Name string `json:"name"`
}

type SeekRequest struct {
	Time *float64 `json:"time"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, OperatorResponse{OK: false, Error: msg})
}

// statusFor maps studio errors to HTTP status codes.
func statusFor(err error) int {
	var (
		mismatch *graph.TypeMismatchError
		cycle    *graph.CycleError
		unknown  *property.UnknownPropertyError
		invalid  *property.InvalidPropertyValueError
	)
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrPortNotFound), errors.Is(err, graph.ErrDuplicateNode),
		errors.Is(err, nodes.ErrUnknownType), errors.Is(err, playhead.ErrInvalidBlock),
		errors.As(err, &mismatch), errors.As(err, &cycle),
		errors.As(err, &unknown), errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, studio.ErrNoGraphStore):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// operator wraps a handler that needs the studio and a JSON body of type T.
// Only POST bodies are decoded; an empty body leaves req zero.
func operator[T any](method string, fn func(w http.ResponseWriter, r *http.Request, c Controller, req *T)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		c := getController()
		if c == nil {
			writeError(w, http.StatusServiceUnavailable, "studio not ready")
			return
		}
		var req T
		if method == http.MethodPost && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON")
				return
			}
		}
		fn(w, r, c, &req)
	}
}

type none struct{}

var graphHandler = operator(http.MethodGet, func(w http.ResponseWriter, r *http.Request, c Controller, _ *none) {
	writeJSON(w, http.StatusOK, c.Description())
})

var outputsHandler = operator(http.MethodGet, func(w http.ResponseWriter, r *http.Request, c Controller, _ *none) {
	id := r.URL.Query().Get("node_id")
	if id == "" {
		writeJSON(w, http.StatusOK, c.Outputs())
		return
	}
	out, err := c.NodeOutputs(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
})

var propertyHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *PropertyRequest) {
	if req.NodeID == "" || req.Property == "" {
		writeError(w, http.StatusBadRequest, "node_id and property required")
		return
	}
	if err := c.SetProperty(req.NodeID, req.Property, req.Value); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
})

var connectHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *ConnectRequest) {
	if req.From == "" || req.To == "" {
		writeError(w, http.StatusBadRequest, "from and to required")
		return
	}
	e, err := c.Connect(req.From, req.To)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ConnectResponse{OK: true, Edge: e})
})

var disconnectHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *DisconnectRequest) {
	if req.EdgeID == "" {
		writeError(w, http.StatusBadRequest, "edge_id required")
		return
	}
	if err := c.Disconnect(req.EdgeID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
})

var addNodeHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *AddNodeRequest) {
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type required")
		return
	}
	id, err := c.AddNode(req.Type, req.ID, req.Properties, req.Position)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AddNodeResponse{OK: true, NodeID: id})
})

var removeNodeHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *RemoveNodeRequest) {
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "node_id required")
		return
	}
	if err := c.RemoveNode(req.NodeID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
})

var saveHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *SaveRequest) {
	if err := c.SaveGraph(r.Context(), req.Name); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, OperatorResponse{OK: true})
})

var playheadHandler = operator(http.MethodGet, func(w http.ResponseWriter, r *http.Request, c Controller, _ *none) {
	writeJSON(w, http.StatusOK, c.PlayheadState())
})

func transportHandler(action func(Controller)) http.HandlerFunc {
	return operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, _ *none) {
		action(c)
		writeJSON(w, http.StatusOK, c.PlayheadState())
	})
}

var seekHandler = operator(http.MethodPost, func(w http.ResponseWriter, r *http.Request, c Controller, req *SeekRequest) {
	if req.Time == nil {
		writeError(w, http.StatusBadRequest, "time required")
		return
	}
	if err := c.Seek(*req.Time); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c.PlayheadState())
})

// NewMux registers every endpoint. Operator endpoints require the operator
// or admin role when auth is enabled; saving the graph requires admin.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", RequireAnyRole(eventsHandler))
	mux.HandleFunc("/ws/events", RequireAnyRole(wsEventsHandler))

	mux.HandleFunc("/graph", RequireAnyRole(graphHandler))
	mux.HandleFunc("/graph/outputs", RequireAnyRole(outputsHandler))
	mux.HandleFunc("/graph/property", RequireAnyRole(propertyHandler))
	mux.HandleFunc("/graph/connect", RequireAnyRole(connectHandler))
	mux.HandleFunc("/graph/disconnect", RequireAnyRole(disconnectHandler))
	mux.HandleFunc("/graph/node", RequireAnyRole(addNodeHandler))
	mux.HandleFunc("/graph/node/remove", RequireAnyRole(removeNodeHandler))
	mux.HandleFunc("/graph/save", RequireAdmin(saveHandler))

	mux.HandleFunc("/playhead", RequireAnyRole(playheadHandler))
	mux.HandleFunc("/playhead/start", RequireAnyRole(transportHandler(Controller.Start)))
	mux.HandleFunc("/playhead/stop", RequireAnyRole(transportHandler(Controller.Stop)))
	mux.HandleFunc("/playhead/reset", RequireAnyRole(transportHandler(Controller.Reset)))
	mux.HandleFunc("/playhead/seek", RequireAnyRole(seekHandler))
	return mux
}

// NewServer builds the HTTP server for port, with TLS when configured.
func NewServer(port int) (*http.Server, error) {
	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewMux(),
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// ListenAndServe serves srv until it is shut down.
func ListenAndServe(srv *http.Server, log *slog.Logger) error {
	if srv.TLSConfig != nil {
		log.Info("API listening", "addr", srv.Addr, "tls", true)
		return srv.ListenAndServeTLS("", "")
	}
	log.Info("API listening", "addr", srv.Addr, "tls", false)
	return srv.ListenAndServe()
}

// Start runs the server in a goroutine. Errors other than a clean shutdown
// are logged but do not stop the caller.
func Start(srv *http.Server, log *slog.Logger) {
	go func() {
		if err := ListenAndServe(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", "error", err)
		}
	}()
}
