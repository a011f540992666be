package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fulfillment/backend/internal/domain/carrier"
	"github.com/fulfillment/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newCarrier(store, id string, priority int, status carrier.Status) carrier.Carrier {
	name := id + " Standard (2kg)"
	return carrier.NewCarrier(store, carrier.Candidate{
		CarrierID:   id,
		Name:        name,
		Status:      status,
		WeightClass: carrier.ParseWeightClass(name),
	}, priority)
}

func carrierIDs(cs []carrier.Carrier) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.CarrierID
	}
	return out
}

// ---------------------------------------------------------------------------
// SQLite-backed behaviour
// ---------------------------------------------------------------------------

func TestGormCarrierRepository_ReplaceStore(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces only the target partition", func(t *testing.T) {
		repo := NewGormCarrierRepository(newSQLiteDB(t))

		_, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{
			newCarrier("STRI", "A", 1, carrier.StatusActive),
			newCarrier("STRI", "B", 2, carrier.StatusActive),
		})
		require.NoError(t, err)
		_, err = repo.ReplaceStore(ctx, "ACME", []carrier.Carrier{
			newCarrier("ACME", "A", 1, carrier.StatusActive),
		})
		require.NoError(t, err)

		res, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{
			newCarrier("STRI", "C", 1, carrier.StatusActive),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Written)
		assert.Empty(t, res.Skipped)

		stri, err := repo.FindByStore(ctx, "STRI")
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, carrierIDs(stri))

		acme, err := repo.FindByStore(ctx, "ACME")
		require.NoError(t, err)
		require.Len(t, acme, 1)
		assert.Equal(t, "A", acme[0].CarrierID)
		assert.Equal(t, 1, acme[0].Priority)
	})

	t.Run("round-trips every field", func(t *testing.T) {
		repo := NewGormCarrierRepository(newSQLiteDB(t))
		in := newCarrier("STRI", "DHL", 3, carrier.StatusInactive)

		_, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{in})
		require.NoError(t, err)

		got, err := repo.FindByStore(ctx, "STRI")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, in.ID, got[0].ID)
		assert.Equal(t, "DHL Standard (2kg)", got[0].Name)
		assert.Equal(t, carrier.StatusInactive, got[0].Status)
		assert.Equal(t, 3, got[0].Priority)
		require.True(t, got[0].WeightClass.Valid)
		assert.True(t, got[0].WeightClass.Decimal.Equal(in.WeightClass.Decimal))
	})

	t.Run("duplicate carrier rows are skipped, not fatal", func(t *testing.T) {
		repo := NewGormCarrierRepository(newSQLiteDB(t))

		res, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{
			newCarrier("STRI", "A", 1, carrier.StatusActive),
			newCarrier("STRI", "A", 2, carrier.StatusActive),
			newCarrier("STRI", "B", 3, carrier.StatusActive),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Written)
		assert.Equal(t, []string{"A"}, res.Skipped)

		got, err := repo.FindByStore(ctx, "STRI")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, carrierIDs(got))
	})

	t.Run("empty list clears the store", func(t *testing.T) {
		repo := NewGormCarrierRepository(newSQLiteDB(t))
		_, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{newCarrier("STRI", "A", 1, carrier.StatusActive)})
		require.NoError(t, err)

		res, err := repo.ReplaceStore(ctx, "STRI", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Written)

		got, err := repo.FindByStore(ctx, "STRI")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("store key required", func(t *testing.T) {
		repo := NewGormCarrierRepository(newSQLiteDB(t))
		_, err := repo.ReplaceStore(ctx, "", nil)
		assert.ErrorIs(t, err, carrier.ErrStoreKeyRequired)
	})
}

func TestGormCarrierRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCarrierRepository(newSQLiteDB(t))

	_, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{
		newCarrier("STRI", "B", 2, carrier.StatusActive),
		newCarrier("STRI", "A", 1, carrier.StatusActive),
	})
	require.NoError(t, err)
	_, err = repo.ReplaceStore(ctx, "ACME", []carrier.Carrier{
		newCarrier("ACME", "Z", 1, carrier.StatusActive),
	})
	require.NoError(t, err)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "A", "B"}, carrierIDs(all))
	assert.Equal(t, "ACME", all[0].StoreKey)
}

func TestGormCarrierRepository_UpdatePriorities(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCarrierRepository(newSQLiteDB(t))

	_, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{
		newCarrier("STRI", "A", 1, carrier.StatusActive),
		newCarrier("STRI", "B", 2, carrier.StatusActive),
	})
	require.NoError(t, err)
	_, err = repo.ReplaceStore(ctx, "ACME", []carrier.Carrier{
		newCarrier("ACME", "A", 1, carrier.StatusActive),
	})
	require.NoError(t, err)

	updated, err := repo.UpdatePriorities(ctx, "STRI", []carrier.Carrier{
		{CarrierID: "A", Priority: 2, Status: carrier.StatusActive},
		{CarrierID: "B", Priority: 1, Status: carrier.StatusInactive},
		{CarrierID: "MISSING", Priority: 9, Status: carrier.StatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	stri, err := repo.FindByStore(ctx, "STRI")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, carrierIDs(stri))
	assert.Equal(t, carrier.StatusInactive, stri[0].Status)

	acme, err := repo.FindByStore(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 1, acme[0].Priority, "same carrier_id in another store is untouched")
}

func TestGormCarrierRepository_InTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCarrierRepository(newSQLiteDB(t))

	_, err := repo.ReplaceStore(ctx, "STRI", []carrier.Carrier{newCarrier("STRI", "A", 1, carrier.StatusActive)})
	require.NoError(t, err)

	t.Run("rolls back every store on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.InTransaction(ctx, func(tx carrier.Repository) error {
			if _, err := tx.UpdatePriorities(ctx, "STRI", []carrier.Carrier{{CarrierID: "A", Priority: 5, Status: carrier.StatusActive}}); err != nil {
				return err
			}
			if _, err := tx.ReplaceStore(ctx, "ACME", []carrier.Carrier{newCarrier("ACME", "X", 1, carrier.StatusActive)}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		stri, err := repo.FindByStore(ctx, "STRI")
		require.NoError(t, err)
		assert.Equal(t, 1, stri[0].Priority)
		acme, err := repo.FindByStore(ctx, "ACME")
		require.NoError(t, err)
		assert.Empty(t, acme)
	})

	t.Run("commits on success", func(t *testing.T) {
		err := repo.InTransaction(ctx, func(tx carrier.Repository) error {
			_, err := tx.UpdatePriorities(ctx, "STRI", []carrier.Carrier{{CarrierID: "A", Priority: 4, Status: carrier.StatusActive}})
			return err
		})
		require.NoError(t, err)

		stri, err := repo.FindByStore(ctx, "STRI")
		require.NoError(t, err)
		assert.Equal(t, 4, stri[0].Priority)
	})
}

// ---------------------------------------------------------------------------
// SQL shape against the PostgreSQL dialect
// ---------------------------------------------------------------------------

func newMockCarrierRepository(t *testing.T) (*GormCarrierRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return NewGormCarrierRepository(gormDB), mock, mockDB
}

func TestGormCarrierRepository_FindByStore_SQL(t *testing.T) {
	repo, mock, mockDB := newMockCarrierRepository(t)
	defer mockDB.Close()

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "carrier_id", "store_key", "name", "status", "weight_class", "priority"}).
		AddRow(id.String(), "DHL", "STRI", "DHL (2kg)", "active", "2.000", 1)

	mock.ExpectQuery(`SELECT \* FROM "carriers" WHERE store_key = \$1 ORDER BY priority ASC, carrier_id ASC`).
		WithArgs("STRI").
		WillReturnRows(rows)

	got, err := repo.FindByStore(context.Background(), "STRI")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "2", got[0].WeightClass.Decimal.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCarrierRepository_ReplaceStore_RollsBackOnDeleteFailure(t *testing.T) {
	repo, mock, mockDB := newMockCarrierRepository(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "carriers" WHERE store_key = \$1`).
		WithArgs("STRI").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.ReplaceStore(context.Background(), "STRI", []carrier.Carrier{newCarrier("STRI", "A", 1, carrier.StatusActive)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete carriers for store STRI")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCarrierRepository_UpdatePriorities_RollsBack(t *testing.T) {
	repo, mock, mockDB := newMockCarrierRepository(t)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "carriers" SET .* WHERE store_key = \$\d+ AND carrier_id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "carriers" SET .* WHERE store_key = \$\d+ AND carrier_id = \$\d+`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := repo.UpdatePriorities(context.Background(), "STRI", []carrier.Carrier{
		{CarrierID: "A", Priority: 1, Status: carrier.StatusActive},
		{CarrierID: "B", Priority: 2, Status: carrier.StatusActive},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update carrier B")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCarrierModel_Mapping(t *testing.T) {
	c := newCarrier("STRI", "A", 4, carrier.StatusActive)
	m := models.CarrierModelFromDomain(&c)
	assert.Equal(t, "carriers", m.TableName())
	assert.Equal(t, c.ID, m.ID)

	back := m.ToDomain()
	assert.Equal(t, c.CarrierID, back.CarrierID)
	assert.Equal(t, c.Priority, back.Priority)

	var zero carrier.Carrier
	assert.NotEqual(t, uuid.Nil, models.CarrierModelFromDomain(&zero).ID)
}
