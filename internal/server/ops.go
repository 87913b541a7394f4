package server

// Op is a game operation reachable over HTTP.
type Op int

const (
	OpSpinnerClick Op = iota + 1
	OpSpinnerStats
	OpSpinnerStart
	OpSpinnerPause
	OpSpinnerResume
	OpSpinnerStop
	OpSpinnerShow
	OpSpinnerHide
	OpFinderStart
	OpFinderStop
	OpFinderAddBeacon
	OpFinderAddHint
	OpFinderAddFact
	OpFinderStatus
	OpFinderConfig
	OpFinderProximity
	OpFinderRegister
)

type opRoute struct {
	Path    string
	Op      Op
	Admin   bool
	Summary string
	// Params lists the operation-specific query parameters.
	Params []string
}

// opRoutes is the complete dispatch table. Every Op appears exactly once.
var opRoutes = []opRoute{
	{Path: "/json/click", Op: OpSpinnerClick, Summary: "Count a click for the caller's team"},
	{Path: "/json/stats", Op: OpSpinnerStats, Summary: "Spinner stats snapshot"},
	{Path: "/json/start", Op: OpSpinnerStart, Admin: true, Summary: "Start a new spinner round"},
	{Path: "/json/pause", Op: OpSpinnerPause, Admin: true, Summary: "Pause the round and stamp the winner"},
	{Path: "/json/resume", Op: OpSpinnerResume, Admin: true, Summary: "Resume a paused round"},
	{Path: "/json/stop", Op: OpSpinnerStop, Admin: true, Summary: "Stop the round for good"},
	{Path: "/json/show", Op: OpSpinnerShow, Admin: true, Summary: "Show the results screen"},
	{Path: "/json/hide", Op: OpSpinnerHide, Admin: true, Summary: "Hide the results screen"},

	{Path: "/finder/start", Op: OpFinderStart, Admin: true, Summary: "Start a new finder round", Params: []string{"start"}},
	{Path: "/finder/stop", Op: OpFinderStop, Admin: true, Summary: "Stop the finder round"},
	{Path: "/finder/addBeacon", Op: OpFinderAddBeacon, Admin: true, Summary: "Add a beacon", Params: []string{"beacon"}},
	{Path: "/finder/addQuestion", Op: OpFinderAddHint, Admin: true, Summary: "Add a hint", Params: []string{"hint", "question"}},
	{Path: "/finder/addFact", Op: OpFinderAddFact, Admin: true, Summary: "Add a fact", Params: []string{"fact"}},
	{Path: "/finder/status", Op: OpFinderStatus, Summary: "Finder round status"},
	{Path: "/finder/config", Op: OpFinderConfig, Summary: "Hints, facts and beacon count"},
	{Path: "/finder/proximity", Op: OpFinderProximity, Summary: "Report beacon signals", Params: []string{"proximity"}},
	{Path: "/finder/register", Op: OpFinderRegister, Summary: "Claim a finishing place"},
}

func (o Op) String() string {
	for _, rt := range opRoutes {
		if rt.Op == o {
			return rt.Path
		}
	}
	return "unknown"
}
