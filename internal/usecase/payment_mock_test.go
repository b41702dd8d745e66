package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"ecorder/internal/domain/model"
	repo "ecorder/internal/repository"
	"ecorder/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	args := m.Called(ctx)
	if err := fn(m.Repos); err != nil {
		return err
	}
	// commit の失敗を再現したいときに使う
	return args.Error(0)
}

// 支払いだけ差し替える。他を触ったら nil で落ちる
type paymentOnlyRepos struct {
	repo.TxRepos
	payments repo.PaymentRepository
}

func (r paymentOnlyRepos) Payments() repo.PaymentRepository { return r.payments }

type PaymentRepoMock struct {
	mock.Mock
	repo.PaymentRepository
}

func (m *PaymentRepoMock) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	args := m.Called(ctx, paymentID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func TestPaymentGet_WithMockTx(t *testing.T) {
	cases := []struct {
		name      string
		found     model.Payment
		findErr   error
		commitErr error
		isAdmin   bool
		status    int
	}{
		{"owner", model.Payment{ID: 3, UserID: 10}, nil, nil, false, http.StatusOK},
		{"other user", model.Payment{ID: 3, UserID: 11}, nil, nil, false, http.StatusNotFound},
		{"admin sees any", model.Payment{ID: 3, UserID: 11}, nil, nil, true, http.StatusOK},
		{"missing", model.Payment{}, repo.ErrNotFound, nil, false, http.StatusNotFound},
		{"commit failed", model.Payment{ID: 3, UserID: 10}, nil, errors.New("commit failed"), false, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payments := new(PaymentRepoMock)
			payments.On("FindByID", mock.Anything, int64(3)).Return(tc.found, tc.findErr)

			txm := &TxManagerMock{Repos: paymentOnlyRepos{payments: payments}}
			txm.On("WithinTx", mock.Anything).Return(tc.commitErr)

			uc := usecase.NewPaymentUsecase(txm, usecase.DefaultStockPolicy(), nil, nil)
			got, err := uc.Get(context.Background(), 10, tc.isAdmin, 3)

			if tc.status == http.StatusOK {
				assert.NoError(t, err)
				assert.Equal(t, int64(3), got.ID)
			} else {
				he, ok := usecase.AsHTTPError(err)
				if assert.True(t, ok) {
					assert.Equal(t, tc.status, he.Status)
				}
			}
			txm.AssertExpectations(t)
			payments.AssertExpectations(t)
		})
	}
}
