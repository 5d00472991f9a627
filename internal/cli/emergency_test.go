package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimpdash/internal/models"
	"kimpdash/internal/repository"
	"kimpdash/internal/service"
	"kimpdash/pkg/crypto"
	"kimpdash/pkg/utils"
)

func init() {
	color.NoColor = true
}

// failingStore отдает ошибку на любую операцию
type failingStore struct {
	*repository.MemoryStateStore
	err error
}

func (s failingStore) Get(ctx context.Context, key string) (*models.SystemStatusRecord, error) {
	return nil, s.err
}

func (s failingStore) Upsert(ctx context.Context, key string, value []byte, updatedAt time.Time) error {
	return s.err
}

func memoryOpener(store service.StateStore) (OpenFunc, *int) {
	closed := 0
	return func(ctx context.Context) (Controller, func(), error) {
		c := service.NewEmergencyService(store, nil, service.EmergencyOptions{
			StoreTimeout:  200 * time.Millisecond,
			WriteAttempts: 1,
		})
		return c, func() { closed++ }, nil
	}, &closed
}

func execute(t *testing.T, open OpenFunc, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatus_NoRecord(t *testing.T) {
	open, closed := memoryOpener(repository.NewMemoryStateStore())

	out, err := execute(t, open, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Emergency stop: inactive")
	assert.Contains(t, out, "reason:         no_record")
	assert.Equal(t, 1, *closed)
}

func TestActivateThenStatus(t *testing.T) {
	store := repository.NewMemoryStateStore()
	open, _ := memoryOpener(store)

	out, err := execute(t, open, "", "activate", "--reason", "api_error")
	require.NoError(t, err)
	assert.Contains(t, out, "Emergency stop ACTIVATED (reason: api_error)")
	assert.NotContains(t, out, "warning")

	out, err = execute(t, open, "", "status", "--json")
	require.NoError(t, err)

	var status models.EmergencyStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Active)
	assert.Equal(t, "api_error", status.Reason)
	assert.NotNil(t, status.ActivatedAt)
}

func TestActivate_DefaultReason(t *testing.T) {
	open, _ := memoryOpener(repository.NewMemoryStateStore())

	out, err := execute(t, open, "", "activate", "--json")
	require.NoError(t, err)

	var result models.EmergencyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	assert.Equal(t, models.ReasonManual, result.Reason)
}

func TestActivate_UncleanReasonStillActivates(t *testing.T) {
	store := repository.NewMemoryStateStore()
	open, _ := memoryOpener(store)

	out, err := execute(t, open, "", "activate", "--json", "-r", "api_error\n"+strings.Repeat("x", 300))
	require.NoError(t, err)

	var result models.EmergencyResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Active)
	assert.Len(t, []rune(result.Reason), utils.MaxReasonLength)
	assert.True(t, strings.HasPrefix(result.Reason, "api_error x"), "got %q", result.Reason)
}

func TestDeactivate(t *testing.T) {
	store := repository.NewMemoryStateStore()
	open, _ := memoryOpener(store)

	_, err := execute(t, open, "", "activate")
	require.NoError(t, err)

	out, err := execute(t, open, "", "deactivate")
	require.NoError(t, err)
	assert.Contains(t, out, "Emergency stop DEACTIVATED")
	assert.Contains(t, out, "deactivated_at:")

	out, err = execute(t, open, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "inactive")
}

func TestStoreFailure(t *testing.T) {
	store := failingStore{MemoryStateStore: repository.NewMemoryStateStore(), err: errors.New("connection refused")}
	open, _ := memoryOpener(store)

	out, err := execute(t, open, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "error: connection refused")

	out, err = execute(t, open, "", "activate")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: state not persisted")
}

func TestOpenError(t *testing.T) {
	open := func(ctx context.Context) (Controller, func(), error) {
		return nil, nil, errors.New("load config: bad")
	}

	_, err := execute(t, open, "", "status")
	assert.EqualError(t, err, "load config: bad")
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, nil, "", "hash-password", "--cost", "4", "s3cret")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, crypto.VerifyPassword("s3cret", hash))
}

func TestHashPassword_Stdin(t *testing.T) {
	out, err := execute(t, nil, "from-stdin\n", "hash-password", "--cost", "4")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, crypto.VerifyPassword("from-stdin", hash))
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := execute(t, nil, "\n", "hash-password", "--cost", "4")
	assert.ErrorIs(t, err, crypto.ErrEmptyPassword)
}

func TestSealSecret(t *testing.T) {
	keyHex, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.ParseKey(keyHex)
	require.NoError(t, err)

	out, err := execute(t, nil, "123:bot-token\n", "seal-secret", "--key", keyHex)
	require.NoError(t, err)

	sealed := strings.TrimSpace(out)
	assert.True(t, crypto.IsSealed(sealed), "got %s", sealed)

	plain, err := crypto.Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "123:bot-token", plain)
}

func TestSealSecret_Errors(t *testing.T) {
	keyHex, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = execute(t, nil, "", "seal-secret", "--key", "", "value")
	assert.Error(t, err)

	_, err = execute(t, nil, "", "seal-secret", "--key", "short", "value")
	assert.ErrorIs(t, err, crypto.ErrInvalidKeyLength)

	_, err = execute(t, nil, "\n", "seal-secret", "--key", keyHex)
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	out, err := execute(t, nil, "", "generate-key")
	require.NoError(t, err)

	_, err = crypto.ParseKey(strings.TrimSpace(out))
	assert.NoError(t, err)
}
