package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/auth"
	"github.com/example/driver-hiring/internal/mirror"
	"github.com/example/driver-hiring/internal/models"
	"github.com/example/driver-hiring/internal/observability"
	"github.com/example/driver-hiring/internal/payments"
	"github.com/example/driver-hiring/internal/storage"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Driver Hiring Backend is running"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type upsertUserRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req upsertUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := nonEmpty(req.Name)
	if name == nil {
		name = nonEmpty(&p.Name)
	}
	user, err := s.store.UpsertUser(r.Context(), models.UserUpsert{
		UID:   p.ID,
		Name:  name,
		Email: nonEmpty(&p.Email),
		Phone: nonEmpty(req.Phone),
		Role:  models.RoleClient,
	})
	if err != nil {
		s.fail(w, r, "upsert user failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.DriverFilter{Query: strings.TrimSpace(q.Get("q"))}
	if v := q.Get("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, badRequest("available must be true or false"))
			return
		}
		filter.Available = &b
	}
	drivers, err := s.store.ListDrivers(r.Context(), filter)
	if err != nil {
		s.fail(w, r, "list drivers failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.store.GetDriver(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get driver failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"driver": d})
}

type availabilityRequest struct {
	Available *bool    `json:"available"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// handleUpdateAvailability writes the relational row first and then the
// realtime mirror. A mirror failure is reported but the row stays updated.
func (s *Server) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req availabilityRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Available == nil {
		writeError(w, badRequest("available is required"))
		return
	}
	if err := s.store.UpdateDriverAvailability(r.Context(), id, *req.Available, req.Latitude, req.Longitude); err != nil {
		s.fail(w, r, "update availability failed", err)
		return
	}
	state := mirror.State{
		Available: *req.Available,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		UpdatedAt: s.now().UnixMilli(),
	}
	if err := s.mirror.Update(r.Context(), id, state); err != nil {
		s.fail(w, r, "realtime mirror failed", err, zap.Int64("driver_id", id))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type bookingRequest struct {
	DriverID  json.Number `json:"driver_id"`
	StartTime *flexTime   `json:"start_time"`
	EndTime   *flexTime   `json:"end_time"`
	Amount    json.Number `json:"amount"`
}

// flexTime accepts RFC 3339 and the zone-less forms that form inputs send.
// Zone-less values are read as UTC.
type flexTime time.Time

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("time must be a string")
	}
	for _, layout := range flexTimeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = flexTime(v)
			return nil
		}
	}
	return fmt.Errorf("unrecognised time %q", s)
}

func (t *flexTime) timePtr() *time.Time {
	if t == nil {
		return nil
	}
	v := time.Time(*t)
	return &v
}

type bookingResponse struct {
	BookingID int64         `json:"bookingId"`
	Order     *models.Order `json:"order"`
}

// handleCreateBooking inserts a pending booking and, for a positive amount,
// creates a gateway order and records the payment. Steps run in sequence
// with no compensation.
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	var req bookingRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DriverID == "" {
		writeError(w, badRequest("driver_id is required"))
		return
	}
	driverID, err := strconv.ParseInt(req.DriverID.String(), 10, 64)
	if err != nil || driverID <= 0 {
		writeError(w, badRequest("driver_id must be a positive integer"))
		return
	}
	var amount float64
	if req.Amount != "" {
		a, err := req.Amount.Float64()
		if err != nil {
			writeError(w, badRequest("amount must be a number"))
			return
		}
		amount = a
	}

	bookingID, err := s.store.CreateBooking(r.Context(), storage.NewBooking{
		ClientUID: p.ID,
		DriverID:  driverID,
		StartTime: req.StartTime.timePtr(),
		EndTime:   req.EndTime.timePtr(),
	})
	if err != nil {
		s.fail(w, r, "create booking failed", err)
		return
	}
	observability.BookingsCreated.Inc()

	resp := bookingResponse{BookingID: bookingID}
	if amount > 0 {
		order, err := s.createOrder(r, bookingID, amount)
		if err != nil {
			s.fail(w, r, "create payment order failed", err, zap.Int64("booking_id", bookingID))
			return
		}
		if _, err := s.store.CreatePayment(r.Context(), storage.NewPayment{
			BookingID: bookingID,
			OrderID:   order.ID,
			Amount:    amount,
			Currency:  s.currency,
		}); err != nil {
			s.fail(w, r, "record payment failed", err, zap.Int64("booking_id", bookingID), zap.String("order_id", order.ID))
			return
		}
		resp.Order = &order
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) createOrder(r *http.Request, bookingID int64, amount float64) (models.Order, error) {
	if s.payments == nil {
		return models.Order{}, &payments.Error{Provider: "none", Err: errors.New("no payment gateway configured")}
	}
	order, err := s.payments.CreateOrder(r.Context(), payments.OrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  payments.Receipt(bookingID),
	})
	observability.PaymentOrders.WithLabelValues(s.payments.Provider(), observability.Result(err)).Inc()
	return order, err
}

// handleAdminDrivers lists the newest drivers. Any verified caller is
// accepted unless the admin role check is switched on.
func (s *Server) handleAdminDrivers(w http.ResponseWriter, r *http.Request) {
	if s.adminRequireRole {
		p, _ := auth.PrincipalFromContext(r.Context())
		u, err := s.store.GetUserByUID(r.Context(), p.ID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && u.Role != models.RoleAdmin) {
			writeError(w, errForbidden)
			return
		}
		if err != nil {
			s.fail(w, r, "load caller failed", err)
			return
		}
	}
	drivers, err := s.store.LatestDrivers(r.Context(), adminListLimit)
	if err != nil {
		s.fail(w, r, "admin list drivers failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
}

// fail logs server-side failures and writes the mapped error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	if status, _ := classify(err); status >= http.StatusInternalServerError {
		fields = append(fields, zap.Error(err), zap.String("request_id", requestIDFromContext(r.Context())))
		s.logger.Error(msg, fields...)
	}
	writeError(w, err)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, badRequest("invalid driver id")
	}
	return id, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
