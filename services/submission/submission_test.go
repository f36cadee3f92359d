package submission

import (
	"context"
	"testing"

	"rewardvault/services/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDirectoryGet(t *testing.T) {
	db := testutil.NewTestDB(t, &Submission{})
	cat := "GIFT_CARD"
	require.NoError(t, db.Create(&Submission{ID: 7, SelectedRewardCategory: &cat}).Error)
	require.NoError(t, db.Create(&Submission{ID: 8}).Error)

	dir := NewDirectory(db)
	ctx := context.Background()

	s, err := dir.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "GIFT_CARD", *s.SelectedRewardCategory)

	s, err = dir.Get(ctx, 8)
	require.NoError(t, err)
	require.Nil(t, s.SelectedRewardCategory)

	_, err = dir.Get(ctx, 99)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDirectoryWithTrx(t *testing.T) {
	db := testutil.NewTestDB(t, &Submission{})
	dir := NewDirectory(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&Submission{ID: 1}).Error; err != nil {
			return err
		}
		_, err := dir.WithTrx(tx).Get(context.Background(), 1)
		return err
	})
	require.NoError(t, err)
}
