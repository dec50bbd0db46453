package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/amirphl/lead-manager/models"
	"github.com/amirphl/lead-manager/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LeadRepositoryImpl implements LeadRepository on top of gorm
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead]
}

// NewLeadRepository creates a new lead repository bound to db
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead](db),
	}
}

// errLeadMissing aborts an update transaction when the lead row does not exist
var errLeadMissing = errors.New("lead row missing")

// One row per contact: leads without contacts yield a single row with NULL contact columns
const leadContactsQuery = `SELECT l.id, l.name, l.company, l.source, l.notes, l.created_at,
	c.kind, c.id, c.value, c.is_whatsapp, c.is_primary
FROM leads l
LEFT JOIN (
	SELECT 'email' AS kind, id, lead_id, address AS value, FALSE AS is_whatsapp, is_primary FROM lead_emails
	UNION ALL
	SELECT 'phone' AS kind, id, lead_id, digits AS value, is_whatsapp, is_primary FROM lead_phones
) c ON c.lead_id = l.id`

var leadSortColumns = map[string]string{
	models.LeadSortByName:      "LOWER(l.name)",
	models.LeadSortByCompany:   "LOWER(COALESCE(l.company, ''))",
	models.LeadSortBySource:    "LOWER(COALESCE(l.source, ''))",
	models.LeadSortByCreatedAt: "l.created_at",
}

type leadContactRow struct {
	ID        uint
	Name      string
	Company   *string
	Source    *string
	Notes     *string
	CreatedAt time.Time

	Kind       sql.NullString
	ContactID  sql.NullInt64
	Value      sql.NullString
	IsWhatsApp sql.NullBool
	IsPrimary  sql.NullBool
}

// Create stores the lead and its non-blank contacts in one transaction
func (r *LeadRepositoryImpl) Create(ctx context.Context, lead *models.Lead) (uint, error) {
	emails := prepareEmails(lead.Emails)
	phones := preparePhones(lead.Phones)

	row := models.Lead{
		Name:      lead.Name,
		Company:   lead.Company,
		Source:    lead.Source,
		Notes:     lead.Notes,
		CreatedAt: utils.UTCNow(),
	}

	err := r.inTransaction(ctx, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		if err := db.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert lead: %w", err)
		}

		for i := range emails {
			emails[i].ID = 0
			emails[i].LeadID = row.ID
			emails[i].CreatedAt = row.CreatedAt
			if err := db.Create(&emails[i]).Error; err != nil {
				return fmt.Errorf("failed to insert email %q: %w", emails[i].Address, err)
			}
		}

		for i := range phones {
			phones[i].ID = 0
			phones[i].LeadID = row.ID
			phones[i].CreatedAt = row.CreatedAt
			if err := db.Create(&phones[i]).Error; err != nil {
				return fmt.Errorf("failed to insert phone %q: %w", phones[i].Digits, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, newPersistenceError("create lead", err)
	}

	lead.ID = row.ID
	lead.CreatedAt = row.CreatedAt
	lead.Emails = emails
	lead.Phones = phones

	return row.ID, nil
}

// ByID returns the lead with its contacts, or nil if it does not exist
func (r *LeadRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Lead, error) {
	leads, err := r.List(ctx, models.LeadFilter{ID: &id}, models.DefaultLeadSort())
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return leads[0], nil
}

// List runs the join query and groups contact rows back under their lead.
// Lead order follows sort with id as tie breaker; contacts are primary first, then by id.
func (r *LeadRepositoryImpl) List(ctx context.Context, filter models.LeadFilter, sort models.LeadSort) ([]*models.Lead, error) {
	orderBy, err := leadOrderClause(sort)
	if err != nil {
		return nil, err
	}

	query := leadContactsQuery
	where, args := leadWhereClause(filter)
	if where != "" {
		query += "\nWHERE " + where
	}
	query += "\nORDER BY " + orderBy + ", l.id ASC, c.kind ASC, c.id ASC"

	rows, err := r.getDB(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, newPersistenceError("list leads", err)
	}
	defer rows.Close()

	leads := make([]*models.Lead, 0)
	byID := make(map[uint]*models.Lead)

	for rows.Next() {
		var rec leadContactRow
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Company, &rec.Source, &rec.Notes, &rec.CreatedAt,
			&rec.Kind, &rec.ContactID, &rec.Value, &rec.IsWhatsApp, &rec.IsPrimary,
		); err != nil {
			return nil, newPersistenceError("scan lead row", err)
		}

		lead, ok := byID[rec.ID]
		if !ok {
			lead = &models.Lead{
				ID:        rec.ID,
				Name:      rec.Name,
				Company:   rec.Company,
				Source:    rec.Source,
				Notes:     rec.Notes,
				CreatedAt: rec.CreatedAt.UTC(),
				Emails:    []models.LeadEmail{},
				Phones:    []models.LeadPhone{},
			}
			byID[rec.ID] = lead
			leads = append(leads, lead)
		}

		if !rec.ContactID.Valid {
			continue
		}
		switch rec.Kind.String {
		case "email":
			lead.Emails = append(lead.Emails, models.LeadEmail{
				ID:        uint(rec.ContactID.Int64),
				LeadID:    rec.ID,
				Address:   rec.Value.String,
				IsPrimary: rec.IsPrimary.Bool,
			})
		case "phone":
			lead.Phones = append(lead.Phones, models.LeadPhone{
				ID:         uint(rec.ContactID.Int64),
				LeadID:     rec.ID,
				Digits:     rec.Value.String,
				IsWhatsApp: rec.IsWhatsApp.Bool,
				IsPrimary:  rec.IsPrimary.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, newPersistenceError("iterate lead rows", err)
	}

	for _, lead := range leads {
		slices.SortStableFunc(lead.Emails, func(a, b models.LeadEmail) int { return primaryFirst(a.IsPrimary, b.IsPrimary) })
		slices.SortStableFunc(lead.Phones, func(a, b models.LeadPhone) int { return primaryFirst(a.IsPrimary, b.IsPrimary) })
	}

	return leads, nil
}

// Update rewrites the lead's scalar fields and reconciles both contact sets in one transaction.
// It returns false, with nothing written, when the lead does not exist.
func (r *LeadRepositoryImpl) Update(ctx context.Context, lead *models.Lead) (bool, error) {
	if lead.ID == 0 {
		return false, ErrLeadIDZero
	}

	emails := prepareEmails(lead.Emails)
	phones := preparePhones(lead.Phones)

	err := r.inTransaction(ctx, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		res := db.Model(&models.Lead{}).Where("id = ?", lead.ID).Updates(map[string]any{
			"name":    lead.Name,
			"company": lead.Company,
			"source":  lead.Source,
			"notes":   lead.Notes,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to update lead %d: %w", lead.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return errLeadMissing
		}

		if err := reconcileEmails(db, lead.ID, emails); err != nil {
			return err
		}
		return reconcilePhones(db, lead.ID, phones)
	})
	if errors.Is(err, errLeadMissing) {
		return false, nil
	}
	if err != nil {
		return false, newPersistenceError("update lead", err)
	}

	lead.Emails = emails
	lead.Phones = phones
	return true, nil
}

// Delete removes the lead row; contacts go with it through the cascade
func (r *LeadRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.getDB(ctx).Where("id = ?", id).Delete(&models.Lead{})
	if res.Error != nil {
		return false, newPersistenceError("delete lead", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Stats aggregates lead counts and the per-source breakdown
func (r *LeadRepositoryImpl) Stats(ctx context.Context) (*models.LeadStats, error) {
	stats := &models.LeadStats{BySource: []models.SourceCount{}}

	counters := []struct {
		dst   *int64
		where string
		args  []any
	}{
		{dst: &stats.Total},
		{dst: &stats.WithEmail, where: "EXISTS (SELECT 1 FROM lead_emails e WHERE e.lead_id = leads.id)"},
		{dst: &stats.WithCompany, where: "COALESCE(TRIM(leads.company), '') <> ''"},
		{dst: &stats.WithWhatsApp, where: "EXISTS (SELECT 1 FROM lead_phones p WHERE p.lead_id = leads.id AND p.is_whatsapp = ?)", args: []any{true}},
		{dst: &stats.WithoutSource, where: "COALESCE(TRIM(leads.source), '') = ''"},
	}
	for _, c := range counters {
		var query any
		if c.where != "" {
			query = c.where
		}
		n, err := r.Count(ctx, query, c.args...)
		if err != nil {
			return nil, newPersistenceError("count leads", err)
		}
		*c.dst = n
	}

	var bySource []struct {
		SourceLabel string
		LeadCount   int64
	}
	err := r.getDB(ctx).Model(&models.Lead{}).
		Select("TRIM(source) AS source_label, COUNT(*) AS lead_count").
		Where("COALESCE(TRIM(source), '') <> ''").
		Group("TRIM(source)").
		Order("lead_count DESC, source_label ASC").
		Scan(&bySource).Error
	if err != nil {
		return nil, newPersistenceError("group leads by source", err)
	}
	for _, s := range bySource {
		stats.BySource = append(stats.BySource, models.SourceCount{Source: s.SourceLabel, Count: s.LeadCount})
	}

	return stats, nil
}

// reconcileEmails deletes removed rows, updates changed rows and inserts new ones
func reconcileEmails(db *gorm.DB, leadID uint, incoming []models.LeadEmail) error {
	var existing []models.LeadEmail
	if err := db.Where("lead_id = ?", leadID).Order("id ASC").Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to load emails of lead %d: %w", leadID, err)
	}

	current := make(map[uint]models.LeadEmail, len(existing))
	for _, e := range existing {
		current[e.ID] = e
	}

	keep := make(map[uint]bool, len(incoming))
	for _, e := range incoming {
		if e.ID == 0 {
			continue
		}
		if _, ok := current[e.ID]; !ok {
			return &UnknownContactError{Kind: "email", ID: e.ID, LeadID: leadID}
		}
		keep[e.ID] = true
	}

	if stale := staleIDs(existing, keep, func(e models.LeadEmail) uint { return e.ID }); len(stale) > 0 {
		if err := db.Where("lead_id = ? AND id IN ?", leadID, stale).Delete(&models.LeadEmail{}).Error; err != nil {
			return fmt.Errorf("failed to delete emails %v of lead %d: %w", stale, leadID, err)
		}
	}

	// Demotions go first so the single-primary index never sees two primaries
	for _, primaryPass := range []bool{false, true} {
		for i := range incoming {
			e := &incoming[i]
			if e.ID == 0 || e.IsPrimary != primaryPass {
				continue
			}
			old := current[e.ID]
			e.LeadID = leadID
			e.CreatedAt = old.CreatedAt
			if old.Address == e.Address && old.IsPrimary == e.IsPrimary {
				continue
			}
			err := db.Model(&models.LeadEmail{}).
				Where("id = ? AND lead_id = ?", e.ID, leadID).
				Updates(map[string]any{"address": e.Address, "is_primary": e.IsPrimary}).Error
			if err != nil {
				return fmt.Errorf("failed to update email %d: %w", e.ID, err)
			}
		}
	}

	now := utils.UTCNow()
	for i := range incoming {
		e := &incoming[i]
		if e.ID != 0 {
			continue
		}
		e.LeadID = leadID
		e.CreatedAt = now
		if err := db.Create(e).Error; err != nil {
			return fmt.Errorf("failed to insert email %q: %w", e.Address, err)
		}
	}

	return nil
}

// reconcilePhones mirrors reconcileEmails for the phone collection
func reconcilePhones(db *gorm.DB, leadID uint, incoming []models.LeadPhone) error {
	var existing []models.LeadPhone
	if err := db.Where("lead_id = ?", leadID).Order("id ASC").Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to load phones of lead %d: %w", leadID, err)
	}

	current := make(map[uint]models.LeadPhone, len(existing))
	for _, p := range existing {
		current[p.ID] = p
	}

	keep := make(map[uint]bool, len(incoming))
	for _, p := range incoming {
		if p.ID == 0 {
			continue
		}
		if _, ok := current[p.ID]; !ok {
			return &UnknownContactError{Kind: "phone", ID: p.ID, LeadID: leadID}
		}
		keep[p.ID] = true
	}

	if stale := staleIDs(existing, keep, func(p models.LeadPhone) uint { return p.ID }); len(stale) > 0 {
		if err := db.Where("lead_id = ? AND id IN ?", leadID, stale).Delete(&models.LeadPhone{}).Error; err != nil {
			return fmt.Errorf("failed to delete phones %v of lead %d: %w", stale, leadID, err)
		}
	}

	for _, primaryPass := range []bool{false, true} {
		for i := range incoming {
			p := &incoming[i]
			if p.ID == 0 || p.IsPrimary != primaryPass {
				continue
			}
			old := current[p.ID]
			p.LeadID = leadID
			p.CreatedAt = old.CreatedAt
			if old.Digits == p.Digits && old.IsWhatsApp == p.IsWhatsApp && old.IsPrimary == p.IsPrimary {
				continue
			}
			err := db.Model(&models.LeadPhone{}).
				Where("id = ? AND lead_id = ?", p.ID, leadID).
				Updates(map[string]any{"digits": p.Digits, "is_whatsapp": p.IsWhatsApp, "is_primary": p.IsPrimary}).Error
			if err != nil {
				return fmt.Errorf("failed to update phone %d: %w", p.ID, err)
			}
		}
	}

	now := utils.UTCNow()
	for i := range incoming {
		p := &incoming[i]
		if p.ID != 0 {
			continue
		}
		p.LeadID = leadID
		p.CreatedAt = now
		if err := db.Create(p).Error; err != nil {
			return fmt.Errorf("failed to insert phone %q: %w", p.Digits, err)
		}
	}

	return nil
}

// prepareEmails drops blank addresses and leaves exactly one primary
func prepareEmails(in []models.LeadEmail) []models.LeadEmail {
	out := make([]models.LeadEmail, 0, len(in))
	for _, e := range in {
		e.Address = strings.TrimSpace(e.Address)
		if e.Address == "" {
			continue
		}
		out = append(out, e)
	}
	primary := primaryIndex(len(out), func(i int) bool { return out[i].IsPrimary })
	for i := range out {
		out[i].IsPrimary = i == primary
	}
	return out
}

// preparePhones drops entries without digits and leaves exactly one primary
func preparePhones(in []models.LeadPhone) []models.LeadPhone {
	out := make([]models.LeadPhone, 0, len(in))
	for _, p := range in {
		p.Digits = strings.TrimSpace(p.Digits)
		if p.Digits == "" {
			continue
		}
		out = append(out, p)
	}
	primary := primaryIndex(len(out), func(i int) bool { return out[i].IsPrimary })
	for i := range out {
		out[i].IsPrimary = i == primary
	}
	return out
}

// primaryIndex picks the first flagged entry, or the first entry when none is flagged
func primaryIndex(n int, flagged func(int) bool) int {
	if n == 0 {
		return -1
	}
	for i := 0; i < n; i++ {
		if flagged(i) {
			return i
		}
	}
	return 0
}

func primaryFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

func staleIDs[T any](existing []T, keep map[uint]bool, id func(T) uint) []uint {
	var stale []uint
	for _, e := range existing {
		if !keep[id(e)] {
			stale = append(stale, id(e))
		}
	}
	return stale
}

func leadOrderClause(s models.LeadSort) (string, error) {
	field := strings.ToLower(strings.TrimSpace(s.Field))
	order := strings.ToLower(strings.TrimSpace(s.Order))
	if field == "" {
		field = models.DefaultLeadSort().Field
	}
	if order == "" {
		order = models.SortOrderAsc
		if field == models.LeadSortByCreatedAt {
			order = models.SortOrderDesc
		}
	}

	column, ok := leadSortColumns[field]
	if !ok || !models.IsValidSortOrder(order) {
		return "", fmt.Errorf("%w: %s %s", ErrInvalidSort, s.Field, s.Order)
	}
	return column + " " + strings.ToUpper(order), nil
}

func leadWhereClause(f models.LeadFilter) (string, []any) {
	var conds []string
	var args []any

	if f.ID != nil {
		conds = append(conds, "l.id = ?")
		args = append(args, *f.ID)
	}

	if f.Query != nil {
		if q := strings.TrimSpace(*f.Query); q != "" {
			pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
			parts := []string{
				`LOWER(l.name) LIKE ? ESCAPE '\'`,
				`LOWER(COALESCE(l.company, '')) LIKE ? ESCAPE '\'`,
				`LOWER(COALESCE(l.source, '')) LIKE ? ESCAPE '\'`,
				`EXISTS (SELECT 1 FROM lead_emails qe WHERE qe.lead_id = l.id AND LOWER(qe.address) LIKE ? ESCAPE '\')`,
			}
			args = append(args, pattern, pattern, pattern, pattern)
			if digits := utils.DigitsOnly(q); digits != "" {
				parts = append(parts, "EXISTS (SELECT 1 FROM lead_phones qp WHERE qp.lead_id = l.id AND qp.digits LIKE ?)")
				args = append(args, "%"+digits+"%")
			}
			conds = append(conds, "("+strings.Join(parts, " OR ")+")")
		}
	}

	if f.Source != nil {
		if src := strings.TrimSpace(*f.Source); src != "" {
			conds = append(conds, "LOWER(TRIM(COALESCE(l.source, ''))) = ?")
			args = append(args, strings.ToLower(src))
		}
	}

	if f.HasEmail != nil {
		cond := "EXISTS (SELECT 1 FROM lead_emails fe WHERE fe.lead_id = l.id)"
		if !*f.HasEmail {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
	}

	if f.HasCompany != nil {
		if *f.HasCompany {
			conds = append(conds, "COALESCE(TRIM(l.company), '') <> ''")
		} else {
			conds = append(conds, "COALESCE(TRIM(l.company), '') = ''")
		}
	}

	if f.HasWhatsApp != nil {
		cond := "EXISTS (SELECT 1 FROM lead_phones fp WHERE fp.lead_id = l.id AND fp.is_whatsapp = ?)"
		if !*f.HasWhatsApp {
			cond = "NOT " + cond
		}
		conds = append(conds, cond)
		args = append(args, true)
	}

	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
