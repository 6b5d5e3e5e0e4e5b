package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ithachiuchiha/e-commers-site/internal/testutil"
)

var fixedNow = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

const fixedReference = "01HZX3J9K6Q4T8V2B7N5M1C0DE"

type harness struct {
	t       *testing.T
	backend *testutil.HTTPBackend
	env     map[string]string
	golden  *goldie.Goldie
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hb := testutil.NewHTTPBackend(t)
	h := &harness{
		t:       t,
		backend: hb,
		now:     fixedNow,
		env: map[string]string{
			"STOREFRONT_BACKEND_URL":        hb.URL(),
			"STOREFRONT_ANON_KEY":           testutil.AnonKey,
			"STOREFRONT_LOCAL_DB":           filepath.Join(t.TempDir(), "storefront.db"),
			"STOREFRONT_SESSION_BASE_DELAY": "1ms",
			"STOREFRONT_GUARD_RETRY_DELAY":  "1ms",
		},
		golden: goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden")),
	}
	hb.Now = func() time.Time { return h.now }
	return h
}

// run executes one CLI invocation, a fresh process over the same device storage.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	opts := &RootOptions{
		env:    h.env,
		now:    func() time.Time { return h.now },
		newID:  func() string { return fixedReference },
		logger: zap.NewNop(),
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(name string, args ...string) {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	h.golden.Assert(h.t, name, []byte(out))
}

func TestShopperJourney(t *testing.T) {
	h := newHarness(t)

	h.mustRun("products", "products")
	h.mustRun("cart_anonymous", "cart", "add", "1", "--qty", "2")
	h.mustRun("signup", "signup",
		"--email", "asha@example.com", "--password", "secret1",
		"--name", "Asha Rao", "--phone", "9876543210", "--address", "12 MG Road")
	h.mustRun("signin", "signin", "--email", "asha@example.com", "--password", "secret1")
	h.mustRun("cart_signed_in", "cart", "add", "2")

	// A new invocation restores the cart saved against the account.
	h.mustRun("cart_restored", "cart", "show")

	h.mustRun("checkout", "checkout",
		"--name", "Asha Rao", "--line1", "12 MG Road", "--city", "Bengaluru",
		"--state", "Karnataka", "--postal-code", "560001", "--phone", "9876543210",
		"--payment", "cod")
	h.mustRun("cart_after_checkout", "cart")
	h.mustRun("orders", "orders")
	h.mustRun("order", "order", "ord-0001")

	out, err := h.run("dashboard")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	h.golden.Assert(t, "dashboard_forbidden", []byte(out))

	h.mustRun("signout", "signout")
	h.mustRun("whoami_signed_out", "whoami")

	snapshots := h.backend.Rows("user_sessions")
	require.Len(t, snapshots, 1)
	orders := h.backend.Rows("orders")
	require.Len(t, orders, 1)
	assert.Equal(t, fixedReference, orders[0]["client_reference"])
	assert.Len(t, h.backend.Rows("order_items"), 2)
}

func TestAdminDashboard(t *testing.T) {
	h := newHarness(t)

	h.mustRun("admin_signup", "signup", "--admin",
		"--email", "ravi@example.com", "--password", "admin-pass",
		"--name", "Ravi Kumar", "--phone", "9000000001")
	h.mustRun("admin_signin", "signin", "--admin", "--email", "ravi@example.com", "--password", "admin-pass")
	h.mustRun("dashboard", "dashboard")
}

func TestSignUpWithImmediateConfirmationSignsIn(t *testing.T) {
	h := newHarness(t)
	h.backend.SignInOnSignUp()

	out, err := h.run("signup", "--admin",
		"--email", "ravi@example.com", "--password", "admin-pass",
		"--name", "Ravi Kumar", "--phone", "9000000001")
	require.NoError(t, err, out)
	assert.Equal(t, "Account created for ravi@example.com.\nSigned in as Ravi Kumar <ravi@example.com>\nRole: admin\nPhone: 9000000001\n", out)

	out, err = h.run("whoami")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Role: admin")

	_, err = h.run("dashboard")
	require.NoError(t, err)
}

func TestAdminSignInRejectsCustomers(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("signup", "--email", "asha@example.com", "--password", "secret1", "--name", "Asha Rao")
	require.NoError(t, err)

	out, err := h.run("signin", "--admin", "--email", "asha@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.Equal(t, "Error [E005]: Access denied. You do not have admin privileges.\n", out)

	out, err = h.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in.\n", out)
}

func TestSignInFailures(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser("asha@example.com", "secret1", true)
	h.backend.AddUser("new@example.com", "secret1", false)

	cases := []struct {
		name  string
		email string
		pass  string
		want  string
	}{
		{"wrong password", "asha@example.com", "nope123", "Error [E003]: Invalid email or password. Please check your credentials and try again.\n"},
		{"unknown user", "ghost@example.com", "secret1", "Error [E003]: Invalid email or password. Please check your credentials and try again.\n"},
		{"unconfirmed", "new@example.com", "secret1", "Error [E003]: Please check your email and click the confirmation link before signing in.\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := h.run("signin", "--email", tc.email, "--password", tc.pass)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestSignUpShortPassword(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("signup", "--email", "asha@example.com", "--password", "abc")
	require.Error(t, err)
	assert.Equal(t, "Error [E003]: Password must be at least 6 characters long\n", out)
	assert.Empty(t, h.backend.Rows("customers"))
}

func TestCartEditing(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("cart", "add", "1")
	require.NoError(t, err)
	_, err = h.run("cart", "add", "1")
	require.NoError(t, err)
	_, err = h.run("cart", "add", "2", "-q", "3")
	require.NoError(t, err)

	out, err := h.run("--format", "json", "cart", "set", "2", "0")
	require.NoError(t, err)
	var resp struct {
		Status string   `json:"status"`
		Data   cartView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, 2, resp.Data.Items[0].Quantity)
	assert.Equal(t, 1, resp.Data.Items[1].Quantity)
	assert.Equal(t, int64(2*45000+32000), resp.Data.TotalPaise)

	out, err = h.run("cart", "remove", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Cold Pressed Groundnut Oil")
	assert.NotContains(t, out, "Wild Forest Honey")

	out, err = h.run("cart", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Your cart is empty.\n", out)
}

func TestCartAddUnknownProductJSON(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("--format", "json", "cart", "add", "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	h.golden.Assert(t, "cart_add_unknown_json", []byte(out))
}

func TestProductsJSON(t *testing.T) {
	h := newHarness(t)
	h.mustRun("products_json", "--format", "json", "products")
}

func TestSignedOutCommandsAskForSignIn(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("cart", "add", "1")
	require.NoError(t, err)

	for _, args := range [][]string{
		{"orders"},
		{"order", "ord-0001"},
		{"dashboard"},
		{"checkout", "--name", "A"},
	} {
		out, err := h.run(args...)
		require.Error(t, err, args)
		assert.Equal(t, "Error [E004]: Please sign in first.\n", out, args)
	}
}

func TestCheckoutValidation(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser("asha@example.com", "secret1", true)
	_, err := h.run("signin", "--email", "asha@example.com", "--password", "secret1")
	require.NoError(t, err)

	out, err := h.run("checkout", "--name", "Asha Rao")
	require.Error(t, err)
	assert.Equal(t, "Error [E007]: Your cart is empty.\n", out)

	_, err = h.run("cart", "add", "1")
	require.NoError(t, err)

	out, err = h.run("--verbose", "checkout", "--name", "Asha Rao", "--line1", "12 MG Road")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E007]: Shipping address is incomplete.\n")
	assert.Contains(t, out, "city, state, postalCode, phone")

	out, err = h.run("checkout", "--name", "Asha Rao", "--line1", "12 MG Road", "--city", "Pune",
		"--state", "Maharashtra", "--postal-code", "411001", "--phone", "9876543210", "--payment", "cheque")
	require.Error(t, err)
	assert.Equal(t, "Error [E007]: Payment method must be cod or online.\n", out)
	assert.Empty(t, h.backend.Rows("orders"))
}

func TestUnknownOrder(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser("asha@example.com", "secret1", true)
	_, err := h.run("signin", "--email", "asha@example.com", "--password", "secret1")
	require.NoError(t, err)

	out, err := h.run("order", "ord-9999")
	require.Error(t, err)
	assert.Equal(t, "Error [E006]: Order not found.\n", out)
}

func TestExpiredSessionIsRefreshedAtStartUp(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser("asha@example.com", "secret1", true)
	_, err := h.run("signin", "--email", "asha@example.com", "--password", "secret1")
	require.NoError(t, err)

	// Two hours later the one hour access token has lapsed.
	h.now = fixedNow.Add(2 * time.Hour)
	h.backend.ExpireTokens()

	out, err := h.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as asha@example.com\n", out)
}

func TestMissingConfiguration(t *testing.T) {
	h := newHarness(t)
	delete(h.env, "STOREFRONT_ANON_KEY")

	out, err := h.run("products")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "Error [E002]: Configuration is incomplete.\n", out)
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("--format", "yaml", "products")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}
