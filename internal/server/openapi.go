package server

import (
	"encoding/json"
	"net/http"
	"strings"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/colorwar/internal/colorwar"
	"github.com/playperu/colorwar/internal/finder"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Color int    `json:"color"`
}

// Result is merged into every successful or FAILED game response.
type Result struct {
	Result string `json:"result" enum:"OK,FAILED"`
	Color  int    `json:"color"`
}

type StatsResponse struct {
	Result string `json:"result" enum:"OK"`
	colorwar.Stats
}

type FinderStatusResponse struct {
	Result
	finder.Status
}

type FinderConfigResponse struct {
	Result
	finder.Config
}

type ProximityResponse struct {
	Result
	finder.Proximity
}

type RegisterResponse struct {
	Result
	finder.Registration
}

type HealthResponse map[string]struct {
	Status string `json:"status" enum:"ok,error"`
}

// CommonParams are accepted by every game operation.
type CommonParams struct {
	Name      string `query:"name" description:"Display name, applied to new sessions only"`
	Password  string `query:"password" description:"Admin secret; empty for players"`
	Machine   string `query:"machine" description:"Client platform hint"`
	Parameter string `query:"parameter" description:"Accepted and ignored"`
}

type startParams struct {
	CommonParams
	Start string `query:"start" required:"true" description:"winnerCount|||winnerMessage|||loserMessage"`
}

type beaconParams struct {
	CommonParams
	Beacon string `query:"beacon" required:"true" description:"code,name,threshold,active"`
}

type hintParams struct {
	CommonParams
	Hint     string `query:"hint" description:"code|||text"`
	Question string `query:"question" description:"Alias of hint"`
}

type factParams struct {
	CommonParams
	Fact string `query:"fact" required:"true"`
}

type proximityParams struct {
	CommonParams
	Proximity string `query:"proximity" description:"name:signal pairs, comma separated; name may be the hashed name"`
}

func opDoc(op Op) (req, resp any) {
	switch op {
	case OpFinderStart:
		return startParams{}, Result{}
	case OpFinderStop:
		return CommonParams{}, Result{}
	case OpFinderAddBeacon:
		return beaconParams{}, Result{}
	case OpFinderAddHint:
		return hintParams{}, Result{}
	case OpFinderAddFact:
		return factParams{}, Result{}
	case OpFinderStatus:
		return CommonParams{}, FinderStatusResponse{}
	case OpFinderConfig:
		return CommonParams{}, FinderConfigResponse{}
	case OpFinderProximity:
		return proximityParams{}, ProximityResponse{}
	case OpFinderRegister:
		return CommonParams{}, RegisterResponse{}
	default:
		return CommonParams{}, StatsResponse{}
	}
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Color War API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend for the Spinner color war and the Finder beacon hunt. " +
		"All game operations are GET requests and set the session cookie.")

	for _, rt := range opRoutes {
		req, resp := opDoc(rt.Op)
		oc, _ := r.NewOperationContext(http.MethodGet, rt.Path)
		oc.SetSummary(rt.Summary)
		oc.SetTags(strings.Split(strings.TrimPrefix(rt.Path, "/"), "/")[0])
		if rt.Admin {
			oc.SetDescription("Admin operation: requires the admin secret as password. " +
				"Answers 200 with error Unauthorized otherwise.")
		}
		oc.AddReqStructure(req)
		oc.AddRespStructure(resp, openapi.WithHTTPStatus(http.StatusOK))
		if len(rt.Params) > 0 {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
		}
		oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
		_ = r.AddOperation(oc)
	}

	// GET /json/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/json/events")
	getEvents.SetSummary("Spinner stats stream")
	getEvents.SetDescription("Server-Sent Events stream: a stats event on connect and after every spinner change.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /ws/stats
	getWSStats, _ := r.NewOperationContext(http.MethodGet, "/ws/stats")
	getWSStats.SetSummary("Spinner stats WebSocket")
	getWSStats.SetDescription("Upgrades to a WebSocket that pushes the caller's stats after every spinner change.")
	getWSStats.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWSStats)

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
