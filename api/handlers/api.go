package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/totemops/totem-api/api"
	"github.com/totemops/totem-api/api/scheduler"
	"github.com/totemops/totem-api/config"
	"github.com/totemops/totem-api/databases"
	"github.com/totemops/totem-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Hub       *IncidentHub
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	incidentDB := databases.NewIncidentDatabase(a.dbHelper)
	a.Hub = NewIncidentHub(incidentDB)

	i := NewIncident(incidentDB, a.Hub)
	e := Event{DB: databases.NewEventDatabase(a.dbHelper)}
	mu := MobileUnit{DB: databases.NewMobileUnitDatabase(a.dbHelper), IDB: incidentDB}
	l := Location{DB: databases.NewLocationDatabase(a.dbHelper)}
	u := User{DB: databases.NewUserDatabase(a.dbHelper)}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// live incident snapshots, scoped per event by the eventId query param;
	// the bearer token rides in as ?token= since browsers cannot set headers
	// on websocket dials
	r.Handle("/ws/incidents", api.TokenFromQuery(api.Middleware(http.HandlerFunc(a.Hub.ServeWS))))

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	// the websocket route stays outside the subrouter so long-lived
	// connections never hit the request timeout
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/incidents", api.Middleware(http.HandlerFunc(i.CreateIncidentHandler))).Methods("POST")
	apiCreate.Handle("/incidents", api.Middleware(http.HandlerFunc(i.IncidentHandler))).Methods("GET")
	apiCreate.Handle("/incidents/event/{event_id}", api.Middleware(http.HandlerFunc(i.IncidentsByEventIDHandler))).Methods("GET")
	apiCreate.Handle("/incident/{incident_id}", api.Middleware(http.HandlerFunc(i.IncidentByIDHandler))).Methods("GET")
	apiCreate.Handle("/incident/{incident_id}", api.Middleware(http.HandlerFunc(i.UpdateIncidentByIDHandler))).Methods("PUT")
	apiCreate.Handle("/incident/{incident_id}", api.Middleware(http.HandlerFunc(i.DeleteIncidentByIDHandler))).Methods("DELETE")
	apiCreate.Handle("/incident/{incident_id}/note", api.Middleware(http.HandlerFunc(i.AddIncidentNoteHandler))).Methods("POST")

	apiCreate.Handle("/event", api.Middleware(http.HandlerFunc(e.CreateEventHandler))).Methods("POST")
	apiCreate.Handle("/events", api.Middleware(http.HandlerFunc(e.EventsHandler))).Methods("GET")
	apiCreate.Handle("/event/{event_id}", api.Middleware(http.HandlerFunc(e.EventByIDHandler))).Methods("GET")
	apiCreate.Handle("/event/{event_id}", api.Middleware(http.HandlerFunc(e.SetEventActiveHandler))).Methods("PATCH")
	apiCreate.Handle("/event/{event_id}", api.Middleware(http.HandlerFunc(e.DeleteEventByIDHandler))).Methods("DELETE")

	apiCreate.Handle("/event/{event_id}/units", api.Middleware(http.HandlerFunc(mu.CreateMobileUnitHandler))).Methods("POST")
	apiCreate.Handle("/event/{event_id}/units", api.Middleware(http.HandlerFunc(mu.MobileUnitsByEventIDHandler))).Methods("GET")
	apiCreate.Handle("/event/{event_id}/units/available", api.Middleware(http.HandlerFunc(mu.AvailableUnitsHandler))).Methods("GET")
	apiCreate.Handle("/unit/{unit_id}/status", api.Middleware(http.HandlerFunc(mu.UpdateMobileUnitStatusHandler))).Methods("PUT")
	apiCreate.Handle("/unit/{unit_id}", api.Middleware(http.HandlerFunc(mu.DeleteMobileUnitByIDHandler))).Methods("DELETE")

	apiCreate.Handle("/event/{event_id}/locations", api.Middleware(http.HandlerFunc(l.CreateLocationHandler))).Methods("POST")
	apiCreate.Handle("/event/{event_id}/locations", api.Middleware(http.HandlerFunc(l.LocationsByEventIDHandler))).Methods("GET")
	apiCreate.Handle("/location/{location_id}", api.Middleware(http.HandlerFunc(l.DeleteLocationByIDHandler))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/selected-event", api.Middleware(http.HandlerFunc(u.SelectedEventHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/selected-event", api.Middleware(http.HandlerFunc(u.UpdateSelectedEventHandler))).Methods("PUT")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("totem-api has connected to the database")

	// initialize api router
	a.initializeRoutes()

	// background sweep for incidents stuck in an unresolved status
	staleAfter := 4 * time.Hour
	if v := os.Getenv("STALE_INCIDENT_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			staleAfter = time.Duration(hours) * time.Hour
		}
	}
	a.Scheduler = scheduler.NewScheduler(
		databases.NewIncidentDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
		a.Hub,
		staleAfter,
	)
	a.Scheduler.Start()

	return nil
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
