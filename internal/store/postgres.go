package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"fibermig/internal/metrics"
	"fibermig/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const dateLayout = "2006-01-02"

var (
	locationColumns   = []string{"id", "address", "region", "lat", "lng", "wave_id", "fiber_status"}
	waveColumns       = []string{"id", "name", "start_date", "end_date", "region", "customer_cohort", "progress_status", "progress_percentage"}
	assetColumns      = []string{"id", "type", "location_id", "status", "installation_date", "technician_id"}
	technicianColumns = []string{"id", "name", "phone", "assigned_jobs"}
	workOrderColumns  = []string{"id", "location_id", "technician_id", "status", "start_time", "end_time"}
	customerColumns   = []string{"id", "name", "phone", "address", "consent_status"}
	consentColumns    = []string{"id", "customer_id", "agent_name", "status", "logged_at", "notes"}
)

type Postgres struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPostgres opens the pgx driver and waits for the database to answer,
// retrying the first ping with exponential backoff. Request paths never retry.
func NewPostgres(ctx context.Context, dsn string, log *zap.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err = backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(bo, ctx),
		func(err error, wait time.Duration) {
			log.Warn("database not ready", zap.Error(err), zap.Duration("retry_in", wait))
		},
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresDB(db, log), nil
}

// NewPostgresDB wraps an already opened database handle.
func NewPostgresDB(db *sql.DB, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{db: db, log: log.Named("store")}
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return err
		}
		for _, stmt := range strings.Split(string(body), ";\n") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := p.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
		}
	}
	return nil
}

// builder returns a squirrel builder using postgres placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (p *Postgres) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return p.db.QueryContext(ctx, q, args...)
}

func (p *Postgres) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return p.db.ExecContext(ctx, q, args...)
}

const pgForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// execOne runs an update and maps "no row touched" to ErrNotFound.
func (p *Postgres) execOne(ctx context.Context, b sq.Sqlizer) error {
	res, err := p.exec(ctx, b)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// collect scans rows through the validated boundary. Rows that decode but
// fail validation are skipped, logged and counted.
func collect[T any](p *Postgres, entity string, rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", entity, err)
		}
		if err := model.Validate(v); err != nil {
			p.reject(entity, v, err)
			continue
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) reject(entity string, row any, err error) {
	metrics.RowsRejected.WithLabelValues(entity).Inc()
	p.log.Warn("row rejected", zap.String("entity", entity), zap.Any("row", row), zap.Error(err))
}

func one[T any](items []T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, ErrNotFound
	}
	return items[0], nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func dateArg(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func formatDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.UTC().Format(dateLayout)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

// Locations

func scanLocation(rows *sql.Rows) (model.Location, error) {
	var (
		l                   model.Location
		region, fiberStatus string
		lat, lng            sql.NullFloat64
		waveID              sql.NullString
	)
	if err := rows.Scan(&l.ID, &l.Address, &region, &lat, &lng, &waveID, &fiberStatus); err != nil {
		return l, err
	}
	l.Region = model.Region(region)
	l.FiberStatus = model.FiberStatus(fiberStatus)
	l.Coordinates = model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	l.WaveID = waveID.String
	return l, nil
}

func (p *Postgres) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := p.query(ctx, builder().Select(locationColumns...).From("locations").OrderBy("address"))
	if err != nil {
		return nil, err
	}
	return collect(p, "location", rows, scanLocation)
}

func (p *Postgres) ListLocationsByWave(ctx context.Context, waveID string) ([]model.Location, error) {
	rows, err := p.query(ctx, builder().Select(locationColumns...).From("locations").
		Where(sq.Eq{"wave_id": waveID}).OrderBy("address"))
	if err != nil {
		return nil, err
	}
	return collect(p, "location", rows, scanLocation)
}

func (p *Postgres) CreateLocation(ctx context.Context, in model.LocationInput) (model.Location, error) {
	loc := model.Location{
		ID:          uuid.New().String(),
		Address:     in.Address,
		Region:      in.Region,
		Coordinates: in.Coordinates,
		WaveID:      in.WaveID,
		FiberStatus: defaultFiberStatus(in.FiberStatus),
	}
	if err := model.Validate(loc); err != nil {
		return model.Location{}, err
	}
	_, err := p.exec(ctx, builder().Insert("locations").Columns(locationColumns...).
		Values(loc.ID, loc.Address, string(loc.Region), loc.Coordinates.Lat, loc.Coordinates.Lng, nullString(loc.WaveID), string(loc.FiberStatus)))
	if err != nil {
		return model.Location{}, fmt.Errorf("insert location: %w", err)
	}
	return loc, nil
}

func (p *Postgres) UpdateLocationFiberStatus(ctx context.Context, id string, status model.FiberStatus) error {
	return p.execOne(ctx, builder().Update("locations").Set("fiber_status", string(status)).Where(sq.Eq{"id": id}))
}

func (p *Postgres) AssignLocationWave(ctx context.Context, id, waveID string) error {
	return p.execOne(ctx, builder().Update("locations").Set("wave_id", nullString(waveID)).Where(sq.Eq{"id": id}))
}

// Assets

func scanAsset(rows *sql.Rows) (model.Asset, error) {
	var (
		a                model.Asset
		typ, status      string
		locID, techID    sql.NullString
		installationDate sql.NullTime
	)
	if err := rows.Scan(&a.ID, &typ, &locID, &status, &installationDate, &techID); err != nil {
		return a, err
	}
	a.Type = model.AssetType(typ)
	a.Status = model.AssetStatus(status)
	a.LocationID = locID.String
	a.TechnicianID = techID.String
	a.InstallationDate = formatDate(installationDate)
	return a, nil
}

func (p *Postgres) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := p.query(ctx, builder().Select(assetColumns...).From("assets").OrderBy("created_at DESC"))
	if err != nil {
		return nil, err
	}
	return collect(p, "asset", rows, scanAsset)
}

func (p *Postgres) CreateAsset(ctx context.Context, in model.AssetInput) (model.Asset, error) {
	out, err := p.CreateAssets(ctx, []model.AssetInput{in})
	if err != nil {
		return model.Asset{}, err
	}
	return out[0], nil
}

// CreateAssets writes the whole batch in one INSERT statement.
func (p *Postgres) CreateAssets(ctx context.Context, in []model.AssetInput) ([]model.Asset, error) {
	if len(in) == 0 {
		return []model.Asset{}, nil
	}
	ins := builder().Insert("assets").Columns(assetColumns...)
	out := make([]model.Asset, 0, len(in))
	for i, ai := range in {
		a := model.Asset{
			ID:               uuid.New().String(),
			Type:             ai.Type,
			LocationID:       ai.LocationID,
			Status:           ai.Status,
			InstallationDate: ai.InstallationDate,
			TechnicianID:     ai.TechnicianID,
		}
		if err := model.Validate(a); err != nil {
			return nil, fmt.Errorf("asset %d: %w", i+1, err)
		}
		date, err := dateArg(a.InstallationDate)
		if err != nil {
			return nil, fmt.Errorf("asset %d: %w", i+1, err)
		}
		ins = ins.Values(a.ID, string(a.Type), nullString(a.LocationID), string(a.Status), date, nullString(a.TechnicianID))
		out = append(out, a)
	}
	if _, err := p.exec(ctx, ins); err != nil {
		return nil, fmt.Errorf("insert assets: %w", err)
	}
	return out, nil
}

func (p *Postgres) UpdateAsset(ctx context.Context, id string, patch model.AssetPatch) (model.Asset, error) {
	set := map[string]any{}
	if patch.Type != nil {
		set["type"] = string(*patch.Type)
	}
	if patch.LocationID != nil {
		set["location_id"] = nullString(*patch.LocationID)
	}
	if patch.Status != nil {
		set["status"] = string(*patch.Status)
	}
	if patch.InstallationDate != nil {
		date, err := dateArg(*patch.InstallationDate)
		if err != nil {
			return model.Asset{}, err
		}
		set["installation_date"] = date
	}
	if patch.TechnicianID != nil {
		set["technician_id"] = nullString(*patch.TechnicianID)
	}
	if len(set) > 0 {
		if err := p.execOne(ctx, builder().Update("assets").SetMap(set).Where(sq.Eq{"id": id})); err != nil {
			return model.Asset{}, err
		}
	}
	rows, err := p.query(ctx, builder().Select(assetColumns...).From("assets").Where(sq.Eq{"id": id}))
	if err != nil {
		return model.Asset{}, err
	}
	return one(collect(p, "asset", rows, scanAsset))
}

// Waves

func scanWave(rows *sql.Rows) (model.Wave, error) {
	var (
		w                              model.Wave
		start, end                     sql.NullTime
		region, cohort, progressStatus string
	)
	if err := rows.Scan(&w.ID, &w.Name, &start, &end, &region, &cohort, &progressStatus, &w.ProgressPercentage); err != nil {
		return w, err
	}
	w.StartDate = formatDate(start)
	w.EndDate = formatDate(end)
	w.Region = model.Region(region)
	w.CustomerCohort = model.CustomerCohort(cohort)
	w.ProgressStatus = model.WaveStatus(progressStatus)
	return w, nil
}

func (p *Postgres) ListWaves(ctx context.Context) ([]model.Wave, error) {
	rows, err := p.query(ctx, builder().Select(waveColumns...).From("waves").OrderBy("start_date DESC"))
	if err != nil {
		return nil, err
	}
	return collect(p, "wave", rows, scanWave)
}

func (p *Postgres) GetWave(ctx context.Context, id string) (model.Wave, error) {
	rows, err := p.query(ctx, builder().Select(waveColumns...).From("waves").Where(sq.Eq{"id": id}))
	if err != nil {
		return model.Wave{}, err
	}
	return one(collect(p, "wave", rows, scanWave))
}

func (p *Postgres) CreateWave(ctx context.Context, in model.WaveInput) (model.Wave, error) {
	w := model.Wave{
		ID:             uuid.New().String(),
		Name:           in.Name,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Region:         in.Region,
		CustomerCohort: in.CustomerCohort,
		ProgressStatus: defaultWaveStatus(in.ProgressStatus),
	}
	if err := model.Validate(w); err != nil {
		return model.Wave{}, err
	}
	start, err := dateArg(w.StartDate)
	if err != nil {
		return model.Wave{}, err
	}
	end, err := dateArg(w.EndDate)
	if err != nil {
		return model.Wave{}, err
	}
	_, err = p.exec(ctx, builder().Insert("waves").Columns(waveColumns...).
		Values(w.ID, w.Name, start, end, string(w.Region), string(w.CustomerCohort), string(w.ProgressStatus), 0))
	if err != nil {
		return model.Wave{}, fmt.Errorf("insert wave: %w", err)
	}
	return w, nil
}

func (p *Postgres) UpdateWaveStatus(ctx context.Context, id string, status model.WaveStatus) error {
	return p.execOne(ctx, builder().Update("waves").Set("progress_status", string(status)).Where(sq.Eq{"id": id}))
}

func (p *Postgres) UpdateWaveProgress(ctx context.Context, id string, percentage int) error {
	return p.execOne(ctx, builder().Update("waves").Set("progress_percentage", percentage).Where(sq.Eq{"id": id}))
}

// Technicians

func scanTechnician(rows *sql.Rows) (model.Technician, error) {
	var t model.Technician
	err := rows.Scan(&t.ID, &t.Name, &t.Phone, &t.AssignedJobs)
	return t, err
}

func (p *Postgres) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	rows, err := p.query(ctx, builder().Select(technicianColumns...).From("technicians").OrderBy("name"))
	if err != nil {
		return nil, err
	}
	return collect(p, "technician", rows, scanTechnician)
}

func (p *Postgres) CreateTechnician(ctx context.Context, in model.TechnicianInput) (model.Technician, error) {
	t := model.Technician{ID: uuid.New().String(), Name: in.Name, Phone: in.Phone}
	if err := model.Validate(t); err != nil {
		return model.Technician{}, err
	}
	_, err := p.exec(ctx, builder().Insert("technicians").Columns(technicianColumns...).Values(t.ID, t.Name, t.Phone, 0))
	if err != nil {
		return model.Technician{}, fmt.Errorf("insert technician: %w", err)
	}
	return t, nil
}

// Work orders

func scanWorkOrder(rows *sql.Rows) (model.WorkOrder, error) {
	var (
		wo            model.WorkOrder
		locID, techID sql.NullString
		status        string
		start, end    sql.NullTime
	)
	if err := rows.Scan(&wo.ID, &locID, &techID, &status, &start, &end); err != nil {
		return wo, err
	}
	wo.LocationID = locID.String
	wo.TechnicianID = techID.String
	wo.Status = model.WorkOrderStatus(status)
	wo.StartTime = timePtr(start)
	wo.EndTime = timePtr(end)
	return wo, nil
}

func (p *Postgres) ListWorkOrders(ctx context.Context) ([]model.WorkOrder, error) {
	rows, err := p.query(ctx, builder().Select(workOrderColumns...).From("work_orders").OrderBy("created_at DESC"))
	if err != nil {
		return nil, err
	}
	return collect(p, "work_order", rows, scanWorkOrder)
}

func (p *Postgres) ListWorkOrdersByLocations(ctx context.Context, locationIDs []string) ([]model.WorkOrder, error) {
	if len(locationIDs) == 0 {
		return []model.WorkOrder{}, nil
	}
	rows, err := p.query(ctx, builder().Select(workOrderColumns...).From("work_orders").
		Where(sq.Eq{"location_id": locationIDs}))
	if err != nil {
		return nil, err
	}
	return collect(p, "work_order", rows, scanWorkOrder)
}

func (p *Postgres) GetWorkOrder(ctx context.Context, id string) (model.WorkOrder, error) {
	rows, err := p.query(ctx, builder().Select(workOrderColumns...).From("work_orders").Where(sq.Eq{"id": id}))
	if err != nil {
		return model.WorkOrder{}, err
	}
	return one(collect(p, "work_order", rows, scanWorkOrder))
}

func (p *Postgres) CreateWorkOrder(ctx context.Context, in model.WorkOrderInput) (model.WorkOrder, error) {
	wo := model.WorkOrder{
		ID:           uuid.New().String(),
		LocationID:   in.LocationID,
		TechnicianID: in.TechnicianID,
		Status:       defaultWorkOrderStatus(in.Status),
		StartTime:    utcPtr(in.StartTime),
		EndTime:      utcPtr(in.EndTime),
	}
	if err := model.Validate(wo); err != nil {
		return model.WorkOrder{}, err
	}
	_, err := p.exec(ctx, builder().Insert("work_orders").Columns(workOrderColumns...).
		Values(wo.ID, nullString(wo.LocationID), nullString(wo.TechnicianID), string(wo.Status), nullTime(wo.StartTime), nullTime(wo.EndTime)))
	if err != nil {
		return model.WorkOrder{}, fmt.Errorf("insert work order: %w", err)
	}
	return wo, nil
}

func (p *Postgres) AssignTechnician(ctx context.Context, workOrderID, technicianID string) error {
	return p.execOne(ctx, builder().Update("work_orders").Set("technician_id", nullString(technicianID)).Where(sq.Eq{"id": workOrderID}))
}

// UpdateWorkOrderStatus reads the current row so the time ordering can be
// checked against the merged result.
func (p *Postgres) UpdateWorkOrderStatus(ctx context.Context, id string, upd model.WorkOrderStatusUpdate) error {
	wo, err := p.GetWorkOrder(ctx, id)
	if err != nil {
		return err
	}
	wo.Status = upd.Status
	set := map[string]any{"status": string(upd.Status)}
	if upd.StartTime != nil {
		wo.StartTime = utcPtr(upd.StartTime)
		set["start_time"] = nullTime(wo.StartTime)
	}
	if upd.EndTime != nil {
		wo.EndTime = utcPtr(upd.EndTime)
		set["end_time"] = nullTime(wo.EndTime)
	}
	if err := model.Validate(wo); err != nil {
		return err
	}
	return p.execOne(ctx, builder().Update("work_orders").SetMap(set).Where(sq.Eq{"id": id}))
}

// Customers & consent

func scanCustomer(rows *sql.Rows) (model.Customer, error) {
	var (
		c       model.Customer
		consent string
	)
	if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &consent); err != nil {
		return c, err
	}
	c.ConsentStatus = model.ConsentStatus(consent)
	return c, nil
}

func (p *Postgres) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := p.query(ctx, builder().Select(customerColumns...).From("customers").OrderBy("name"))
	if err != nil {
		return nil, err
	}
	return collect(p, "customer", rows, scanCustomer)
}

func (p *Postgres) CreateCustomer(ctx context.Context, in model.CustomerInput) (model.Customer, error) {
	c := model.Customer{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Phone:         in.Phone,
		Address:       in.Address,
		ConsentStatus: defaultConsent(in.ConsentStatus),
	}
	if err := model.Validate(c); err != nil {
		return model.Customer{}, err
	}
	_, err := p.exec(ctx, builder().Insert("customers").Columns(customerColumns...).
		Values(c.ID, c.Name, c.Phone, c.Address, string(c.ConsentStatus)))
	if err != nil {
		return model.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

func (p *Postgres) UpdateCustomerConsent(ctx context.Context, id string, status model.ConsentStatus) error {
	return p.execOne(ctx, builder().Update("customers").Set("consent_status", string(status)).Where(sq.Eq{"id": id}))
}

func scanConsentLog(rows *sql.Rows) (model.ConsentLog, error) {
	var (
		cl     model.ConsentLog
		status string
		notes  sql.NullString
	)
	if err := rows.Scan(&cl.ID, &cl.CustomerID, &cl.AgentName, &status, &cl.Timestamp, &notes); err != nil {
		return cl, err
	}
	cl.Status = model.ConsentStatus(status)
	cl.Timestamp = cl.Timestamp.UTC()
	cl.Notes = notes.String
	return cl, nil
}

func (p *Postgres) ListConsentLogs(ctx context.Context) ([]model.ConsentLog, error) {
	rows, err := p.query(ctx, builder().Select(consentColumns...).From("consent_logs").OrderBy("logged_at DESC"))
	if err != nil {
		return nil, err
	}
	return collect(p, "consent_log", rows, scanConsentLog)
}

func (p *Postgres) CreateConsentLog(ctx context.Context, in model.ConsentInput) (model.ConsentLog, error) {
	cl := model.ConsentLog{
		ID:         uuid.New().String(),
		CustomerID: in.CustomerID,
		AgentName:  in.AgentName,
		Status:     in.Status,
		Timestamp:  time.Now().UTC(),
		Notes:      in.Notes,
	}
	if err := model.Validate(cl); err != nil {
		return model.ConsentLog{}, err
	}
	_, err := p.exec(ctx, builder().Insert("consent_logs").Columns(consentColumns...).
		Values(cl.ID, cl.CustomerID, cl.AgentName, string(cl.Status), cl.Timestamp, nullString(cl.Notes)))
	if isForeignKeyViolation(err) {
		return model.ConsentLog{}, fmt.Errorf("customer %q: %w", cl.CustomerID, ErrNotFound)
	}
	if err != nil {
		return model.ConsentLog{}, fmt.Errorf("insert consent log: %w", err)
	}
	return cl, nil
}
