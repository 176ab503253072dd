package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"apotekpos/m/domain"
	"apotekpos/m/internal/opname"
	"apotekpos/m/internal/pricing"
	"apotekpos/m/internal/store"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db     *sqlx.DB
	store  *store.Store
	secret string
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string) *Handler {
	return &Handler{db: db, store: store.New(db), secret: secret}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/medicines", func(r chi.Router) {
			r.Get("/", h.searchMedicines)
			r.Post("/", h.createMedicine)
			r.Get("/{id}", h.getMedicine)
			r.Put("/{id}", h.updateMedicine)
			r.Post("/{id}/stock", h.setMedicineStock)
		})

		pr.Route("/patients", func(r chi.Router) {
			r.Get("/", h.searchPatients)
			r.Post("/", h.createPatient)
		})

		pr.Route("/doctors", func(r chi.Router) {
			r.Get("/", h.searchDoctors)
			r.Post("/", h.createDoctor)
		})

		pr.Post("/pricing/compound", h.priceCompound)

		pr.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.createTransaction)
			r.Get("/", h.listTransactions)
			r.Get("/{id}", h.getTransaction)
			r.Patch("/{id}/status", h.updateTransactionStatus)
			r.Get("/{id}/receipt", h.transactionReceipt)
		})

		pr.Route("/stock-opname", func(r chi.Router) {
			r.Post("/", h.confirmOpname)
			r.Get("/", h.listOpnameSessions)
			r.Get("/{id}", h.getOpnameSession)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales", h.salesReport)
			r.Get("/profit-loss", h.profitLossReport)
			r.Get("/balance-sheet", h.balanceSheet)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Auth Handlers

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = "staff"
	}
	if req.Role != "admin" && req.Role != "staff" {
		respondError(w, http.StatusBadRequest, "role must be admin or staff")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}

	var userID int64
	err = h.db.QueryRowx(`INSERT INTO users (username, email, password, role) VALUES (?, ?, ?, ?) RETURNING id`,
		req.Username, strings.ToLower(req.Email), hashed, req.Role).Scan(&userID)
	if err != nil {
		respondError(w, http.StatusConflict, "email already exists")
		return
	}

	token, err := h.generateToken(userID, req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	respondJSON(w, http.StatusCreated, authResponse{
		Token: token,
		User:  domain.User{ID: int(userID), Username: req.Username, Email: strings.ToLower(req.Email), Role: req.Role},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user domain.User
	err := h.db.Get(&user, `SELECT id, username, email, password, role FROM users WHERE email = ?`, strings.ToLower(req.Email))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.generateToken(int64(user.ID), user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}

	user.Password = ""
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "new_password is required")
		return
	}
	uid := r.Context().Value(ctxUserID).(int64)
	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to secure password")
		return
	}
	if _, err := h.db.Exec(`UPDATE users SET password = ? WHERE id = ?`, hashed, uid); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// Medicine catalog

func (h *Handler) searchMedicines(w http.ResponseWriter, r *http.Request) {
	medicines, err := h.store.SearchMedicines(r.Context(), r.URL.Query().Get("query"), 25)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, medicines)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	medicine, err := h.store.GetMedicine(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, medicine)
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	var req domain.Medicine
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.store.CreateMedicine(r.Context(), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	var req domain.Medicine
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = id
	if err := h.store.UpdateMedicine(r.Context(), req); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// setMedicineStock overwrites the stock level directly, outside of a
// sale or an opname. Used for corrections and initial loads.
func (h *Handler) setMedicineStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}
	var payload struct {
		Stock int64 `json:"stock"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.SetStock(r.Context(), id, payload.Stock); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stock updated"})
}

// Patient and doctor directories

func (h *Handler) searchPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.store.SearchPatients(r.Context(), r.URL.Query().Get("query"), 25)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, patients)
}

func (h *Handler) createPatient(w http.ResponseWriter, r *http.Request) {
	var req domain.Patient
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.store.CreatePatient(r.Context(), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) searchDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.store.SearchDoctors(r.Context(), r.URL.Query().Get("query"), 25)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, doctors)
}

func (h *Handler) createDoctor(w http.ResponseWriter, r *http.Request) {
	var req domain.Doctor
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.store.CreateDoctor(r.Context(), req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// Pricing preview

type compoundEstimateRequest struct {
	Items      []store.CompoundIngredientInput `json:"items"`
	TotalUnits int64                           `json:"total_units"`
}

// priceCompound estimates a compound prescription's price before the
// transaction is created. Same formula as the final price, no writes.
func (h *Handler) priceCompound(w http.ResponseWriter, r *http.Request) {
	var req compoundEstimateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ingredients := make([]pricing.Ingredient, 0, len(req.Items))
	for _, item := range req.Items {
		medicine, err := h.store.GetMedicine(r.Context(), item.MedicineID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		ingredients = append(ingredients, pricing.Ingredient{UnitPrice: medicine.Price, Quantity: item.Quantity})
	}

	total, err := pricing.Compound(ingredients, req.TotalUnits, pricing.CompoundServiceFee)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{
		"ingredient_cost": total - pricing.CompoundServiceFee,
		"service_fee":     pricing.CompoundServiceFee,
		"total":           total,
	})
}

// Transactions

type newPatientRequest struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
}

type transactionRequest struct {
	PatientID            int64                             `json:"patient_id"`
	Patient              *newPatientRequest                `json:"patient,omitempty"`
	DoctorID             int64                             `json:"doctor_id"`
	PrescriptionType     string                            `json:"prescription_type"`
	Items                []store.RegularItemInput          `json:"items"`
	CompoundPrescription []store.CompoundPrescriptionInput `json:"compound_prescriptions"`
	PaymentStatus        string                            `json:"payment_status"`
	Notes                string                            `json:"notes"`
	IdempotencyKey       string                            `json:"idempotency_key"`
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Walk-in patients are registered on first use.
	if req.PatientID == 0 && req.Patient != nil {
		created, err := h.store.CreatePatient(r.Context(), domain.Patient{
			Name:      req.Patient.Name,
			Address:   req.Patient.Address,
			Phone:     req.Patient.Phone,
			BirthDate: req.Patient.BirthDate,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}
		req.PatientID = created.ID
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	input := store.TransactionInput{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		PaymentStatus:  req.PaymentStatus,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}

	var (
		detail store.TransactionDetail
		err    error
	)
	switch req.PrescriptionType {
	case domain.PrescriptionRegular:
		detail, err = h.store.CreateRegularTransaction(r.Context(), input, req.Items)
	case domain.PrescriptionCompound:
		detail, err = h.store.CreateCompoundTransaction(r.Context(), input, req.CompoundPrescription)
	default:
		respondError(w, http.StatusBadRequest, "prescription_type must be regular or compound")
		return
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, detail)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TransactionFilter{
		Type:      q.Get("type"),
		Status:    q.Get("status"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Search:    q.Get("search"),
	}
	transactions, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactions)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	detail, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) updateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.store.UpdatePaymentStatus(r.Context(), id, payload.Status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) transactionReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	detail, err := h.store.GetTransaction(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderReceipt(detail)))
}

// Stock opname

type opnameLineRequest struct {
	MedicineID    int64  `json:"medicine_id"`
	PhysicalStock *int64 `json:"physical_stock"`
	Reason        string `json:"reason"`
}

type opnameRequest struct {
	Notes string              `json:"notes"`
	Lines []opnameLineRequest `json:"lines"`
}

// confirmOpname builds a draft session from the submitted count and
// confirms it in one call. System stock is read at confirmation time, so
// differences reflect the stock levels current at this moment.
func (h *Handler) confirmOpname(w http.ResponseWriter, r *http.Request) {
	var req opnameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var session opname.Session
	for _, lineReq := range req.Lines {
		medicine, err := h.store.GetMedicine(r.Context(), lineReq.MedicineID)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		line, err := session.AddLine(medicine)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if lineReq.PhysicalStock != nil {
			if err := session.SetPhysicalStock(line.ID, *lineReq.PhysicalStock); err != nil {
				respondStoreError(w, err)
				return
			}
		}
		if lineReq.Reason != "" {
			if err := session.SetReason(line.ID, lineReq.Reason); err != nil {
				respondStoreError(w, err)
				return
			}
		}
	}

	confirmed, err := h.store.ConfirmOpname(r.Context(), &session, req.Notes)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, confirmed)
}

func (h *Handler) listOpnameSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListOpnameSessions(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) getOpnameSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	session, err := h.store.GetOpnameSession(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Reports

func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	switch period {
	case "", "week", "month", "year":
	default:
		respondError(w, http.StatusBadRequest, "period must be week, month or year")
		return
	}
	report, err := h.store.GetSalesReport(r.Context(), period, time.Now())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) profitLossReport(w http.ResponseWriter, r *http.Request) {
	month := time.Now()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "month must be in YYYY-MM format")
			return
		}
		month = parsed
	}
	report, err := h.store.GetProfitLossReport(r.Context(), month)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "as_of must be in YYYY-MM-DD format")
			return
		}
		asOf = parsed
	}
	sheet, err := h.store.GetBalanceSheet(r.Context(), asOf)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sheet)
}

// Helpers

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps domain errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	var missing *domain.MissingReasonError
	switch {
	case errors.As(err, &missing):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":        err.Error(),
			"medicine_ids": missing.MedicineIDs,
		})
	case errors.Is(err, domain.ErrMedicineNotFound),
		errors.Is(err, domain.ErrPatientNotFound),
		errors.Is(err, domain.ErrDoctorNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrLineNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrDuplicateMedicine),
		errors.Is(err, domain.ErrSessionConfirmed):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrEmptyComposition),
		errors.Is(err, domain.ErrInvalidStockValue),
		errors.Is(err, domain.ErrInvalidReason),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidForm),
		errors.Is(err, domain.ErrNameRequired),
		errors.Is(err, domain.ErrDosageRequired),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrEmptySession):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
