//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listkeep/invite-service/internal/codegen"
	"github.com/listkeep/invite-service/internal/repository"
	"github.com/listkeep/invite-service/internal/service"
)

func newRealService() *service.InvitationService {
	codeRepo := repository.NewCodeRepository(testPool)
	usageRepo := repository.NewUsageRepository(testPool)
	userRepo := repository.NewUserRepository(testPool)
	return service.NewInvitationService(testPool, codeRepo, usageRepo, userRepo, codegen.DefaultLength)
}

// TestConcurrentRedeemLastUse verifies the quota invariant under contention.
// Given two concurrent redemptions of a code with exactly one remaining use,
// exactly one succeeds, the other fails with ErrCodeExhausted, and used_count
// lands on max_uses without overshooting.
func TestConcurrentRedeemLastUse(t *testing.T) {
	cleanupTables(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin := createTestUser(t, "admin_last_use", true)
	createTestCode(t, "LASTUSE1", 3, 2, admin)

	users := make([]uuid.UUID, 2)
	for i := range users {
		users[i] = createTestUser(t, fmt.Sprintf("racer_%d", i), false)
	}

	svc := newRealService()

	var wg sync.WaitGroup
	results := make(chan error, len(users))

	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			results <- svc.Redeem(ctx, "LASTUSE1", userID, "127.0.0.1", "integration-test")
		}(userID)
	}

	wg.Wait()
	close(results)

	var successes, exhausted, otherErrors int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, service.ErrCodeExhausted):
			exhausted++
		default:
			otherErrors++
			t.Logf("Unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "Exactly one redemption should succeed")
	assert.Equal(t, 1, exhausted, "Exactly one redemption should fail with ErrCodeExhausted")
	assert.Equal(t, 0, otherErrors, "No other errors should occur")

	usedCount, usageRows := getCodeFromDB(t, "LASTUSE1")
	assert.Equal(t, 3, usedCount, "used_count should be exactly max_uses, not beyond")
	assert.Equal(t, 1, usageRows, "Exactly 1 usage row should be recorded in this test")
}

// TestConcurrentRedeemSameUser verifies the one-redemption-per-user invariant.
// Ten concurrent redemptions of the same code by the same user produce exactly
// one usage row; the rest fail with ErrAlreadyUsed.
func TestConcurrentRedeemSameUser(t *testing.T) {
	cleanupTables(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin := createTestUser(t, "admin_same_user", true)
	createTestCode(t, "SAMEUSER", 100, 0, admin)
	userID := createTestUser(t, "repeat_redeemer", false)

	svc := newRealService()

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Redeem(ctx, "SAMEUSER", userID, "127.0.0.1", "integration-test")
		}()
	}

	wg.Wait()
	close(results)

	var successes, alreadyUsed, otherErrors int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, service.ErrAlreadyUsed):
			alreadyUsed++
		default:
			otherErrors++
			t.Logf("Unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "Exactly one redemption should succeed")
	assert.Equal(t, attempts-1, alreadyUsed, "All other redemptions should fail with ErrAlreadyUsed")
	assert.Equal(t, 0, otherErrors, "No other errors should occur")

	usedCount, usageRows := getCodeFromDB(t, "SAMEUSER")
	assert.Equal(t, 1, usedCount, "used_count should reflect a single redemption")
	assert.Equal(t, 1, usageRows, "Exactly 1 usage row should exist")
}

// TestConcurrentRedeemManyUsers hammers a small quota with many distinct users
// and checks the counter never overshoots.
func TestConcurrentRedeemManyUsers(t *testing.T) {
	cleanupTables(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	admin := createTestUser(t, "admin_many", true)
	const maxUses = 5
	const contenders = 20
	createTestCode(t, "MANYUSER", maxUses, 0, admin)

	users := make([]uuid.UUID, contenders)
	for i := range users {
		users[i] = createTestUser(t, fmt.Sprintf("contender_%d", i), false)
	}

	svc := newRealService()

	var wg sync.WaitGroup
	results := make(chan error, contenders)

	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			results <- svc.Redeem(ctx, "MANYUSER", userID, "127.0.0.1", "integration-test")
		}(userID)
	}

	wg.Wait()
	close(results)

	var successes, exhausted, otherErrors int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, service.ErrCodeExhausted):
			exhausted++
		default:
			otherErrors++
			t.Logf("Unexpected error: %v", err)
		}
	}

	assert.Equal(t, maxUses, successes, "Successes should equal the quota")
	assert.Equal(t, contenders-maxUses, exhausted, "Everyone past the quota should see ErrCodeExhausted")
	assert.Equal(t, 0, otherErrors, "No other errors should occur")

	usedCount, usageRows := getCodeFromDB(t, "MANYUSER")
	assert.Equal(t, maxUses, usedCount, "used_count should be exactly max_uses")
	assert.Equal(t, maxUses, usageRows, "Usage rows should match the quota")
	require.LessOrEqual(t, usedCount, maxUses)
}
