package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"

	"github.com/code-payments/billing-client/billing"
	pg "github.com/code-payments/billing-client/database/postgres"
)

const purchaseTable = `"billing_purchase"`

type pgStore struct {
	db *sqlx.DB
}

func NewInPostgres(db *sql.DB) billing.Store {
	return &pgStore{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// CreateTables applies the store schema. Intended for test harnesses; real
// deployments run migrations out of band.
func CreateTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+purchaseTable+` (
			"productId"        TEXT NOT NULL,
			"purchaseToken"    TEXT NOT NULL,
			"orderId"          TEXT NOT NULL DEFAULT '',
			"itemType"         INT NOT NULL,
			"state"            INT NOT NULL,
			"autoRenewing"     BOOL NOT NULL DEFAULT FALSE,
			"consumptionState" INT NOT NULL DEFAULT 0,
			"payload"          TEXT NOT NULL DEFAULT '',
			"signedData"       TEXT NOT NULL DEFAULT '',
			"signature"        TEXT NOT NULL DEFAULT '',
			"transactionDate"  TIMESTAMPTZ NOT NULL,
			"verification"     INT NOT NULL,
			"createdAt"        TIMESTAMPTZ NOT NULL,

			PRIMARY KEY ("productId", "purchaseToken")
		)
	`)
	return err
}

type purchaseModel struct {
	ProductID        string    `db:"productId"`
	PurchaseToken    string    `db:"purchaseToken"`
	OrderID          string    `db:"orderId"`
	ItemType         int       `db:"itemType"`
	State            int       `db:"state"`
	AutoRenewing     bool      `db:"autoRenewing"`
	ConsumptionState int       `db:"consumptionState"`
	Payload          string    `db:"payload"`
	SignedData       string    `db:"signedData"`
	Signature        string    `db:"signature"`
	TransactionDate  time.Time `db:"transactionDate"`
	Verification     int       `db:"verification"`
	CreatedAt        time.Time `db:"createdAt"`
}

func (s *pgStore) reset() {
	_, err := s.db.ExecContext(context.Background(), `DELETE FROM `+purchaseTable)
	if err != nil {
		panic(err)
	}
}

func (s *pgStore) CreateRecord(ctx context.Context, record *billing.Record) error {
	p := record.Purchase

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO `+purchaseTable+` (
			"productId", "purchaseToken", "orderId", "itemType", "state",
			"autoRenewing", "consumptionState", "payload", "signedData",
			"signature", "transactionDate", "verification", "createdAt"
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		p.ProductID,
		p.PurchaseToken,
		p.ID,
		int(record.ItemType),
		int(p.State),
		p.AutoRenewing,
		int(p.ConsumptionState),
		p.Payload,
		pg.Encode([]byte(p.SignedData)),
		pg.Encode([]byte(p.Signature)),
		p.TransactionDateUTC,
		int(record.Verification),
		record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return billing.ErrExists
		}
		return err
	}

	return nil
}

func (s *pgStore) GetRecord(ctx context.Context, productID, purchaseToken string) (*billing.Record, error) {
	var m purchaseModel
	query := `SELECT * FROM ` + purchaseTable + ` WHERE "productId" = $1 AND "purchaseToken" = $2`
	err := s.db.GetContext(ctx, &m, query, productID, purchaseToken)
	if err == sql.ErrNoRows {
		return nil, billing.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return fromModel(&m)
}

func (s *pgStore) ListByVerification(ctx context.Context, state billing.VerificationState) ([]*billing.Record, error) {
	var models []purchaseModel
	query := `SELECT * FROM ` + purchaseTable + ` WHERE "verification" = $1 ORDER BY "createdAt" ASC`
	err := s.db.SelectContext(ctx, &models, query, int(state))
	if err != nil {
		return nil, err
	}

	records := make([]*billing.Record, 0, len(models))
	for i := range models {
		record, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *pgStore) SetVerification(ctx context.Context, productID, purchaseToken string, state billing.VerificationState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE `+purchaseTable+` SET "verification" = $1
		WHERE "productId" = $2 AND "purchaseToken" = $3
	`, int(state), productID, purchaseToken)
	if err != nil {
		return err
	}

	return requireRowUpdated(res)
}

func (s *pgStore) MarkConsumed(ctx context.Context, productID, purchaseToken string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE `+purchaseTable+` SET "consumptionState" = $1
		WHERE "productId" = $2 AND "purchaseToken" = $3
	`, int(billing.ConsumptionStateConsumed), productID, purchaseToken)
	if err != nil {
		return err
	}

	return requireRowUpdated(res)
}

func decodeColumn(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	raw, err := pg.Decode(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func requireRowUpdated(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func fromModel(m *purchaseModel) (*billing.Record, error) {
	signedData, err := decodeColumn(m.SignedData)
	if err != nil {
		return nil, err
	}
	signature, err := decodeColumn(m.Signature)
	if err != nil {
		return nil, err
	}

	return &billing.Record{
		Purchase: &billing.Purchase{
			ID:                 m.OrderID,
			ProductID:          m.ProductID,
			PurchaseToken:      m.PurchaseToken,
			TransactionDateUTC: m.TransactionDate.UTC(),
			State:              billing.PurchaseState(m.State),
			AutoRenewing:       m.AutoRenewing,
			ConsumptionState:   billing.ConsumptionState(m.ConsumptionState),
			Payload:            m.Payload,
			SignedData:         signedData,
			Signature:          signature,
		},
		ItemType:     billing.ItemType(m.ItemType),
		Verification: billing.VerificationState(m.Verification),
		CreatedAt:    m.CreatedAt.UTC(),
	}, nil
}
