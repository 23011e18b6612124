package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/merchantops/merchantops/internal/apperr"
	"github.com/merchantops/merchantops/internal/connectors"
	"github.com/merchantops/merchantops/internal/metrics"
	"github.com/merchantops/merchantops/internal/store"
	"github.com/merchantops/merchantops/internal/store/memstore"
)

func TestRegisterIfAbsentIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	m := NewDefaultConfigManager(s, nil)

	for range 2 {
		if err := m.RegisterIfAbsent(ctx, "merchant_idem", "pro_idem", "stripe", "mca_1", connectors.TransactionPayment); err != nil {
			t.Fatalf("RegisterIfAbsent() error = %v", err)
		}
	}
	owners := []struct {
		scope Scope
		id    string
	}{
		{scope: ScopeMerchant, id: "merchant_idem"},
		{scope: ScopeProfile, id: "pro_idem"},
	}
	for _, o := range owners {
		list, err := m.Get(ctx, o.scope, o.id, connectors.TransactionPayment)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", o.id, err)
		}
		if len(list) != 1 || !list[0].Equal(FullStruct("stripe", "mca_1")) {
			t.Fatalf("Get(%s) = %v, want one stripe entry", o.id, list)
		}
	}
	payout, err := m.Get(ctx, ScopeMerchant, "merchant_idem", connectors.TransactionPayout)
	if err != nil || len(payout) != 0 {
		t.Fatalf("Get(payout) = %v, %v, want empty", payout, err)
	}
}

func TestRegisterIfAbsentKeepsDistinctAccounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewDefaultConfigManager(memstore.New(), nil)
	if err := m.RegisterIfAbsent(ctx, "merchant_two", "pro_two", "adyen", "mca_1", connectors.TransactionPayout); err != nil {
		t.Fatalf("RegisterIfAbsent() error = %v", err)
	}
	if err := m.RegisterIfAbsent(ctx, "merchant_two", "pro_two", "adyen", "mca_2", connectors.TransactionPayout); err != nil {
		t.Fatalf("RegisterIfAbsent() error = %v", err)
	}
	list, err := m.Get(ctx, ScopeMerchant, "merchant_two", connectors.TransactionPayout)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}
	if *list[0].MerchantConnectorID != "mca_1" || *list[1].MerchantConnectorID != "mca_2" {
		t.Fatalf("list order = %v, want mca_1 then mca_2", list)
	}
}

func TestRegisterIfAbsentConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewDefaultConfigManager(memstore.New(), nil)
	m.maxAttempts = 100

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.RegisterIfAbsent(ctx, "merchant_race", "pro_race", "checkout", fmt.Sprintf("mca_%d", i), connectors.TransactionPayment)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RegisterIfAbsent() error = %v", err)
		}
	}
	list, err := m.Get(ctx, ScopeMerchant, "merchant_race", connectors.TransactionPayment)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(list) != n {
		t.Fatalf("len(list) = %d, want %d", len(list), n)
	}
}

type conflictOnce struct {
	store.ConfigStore
	mu       sync.Mutex
	conflict bool
}

func (c *conflictOnce) UpdateConfigIfVersion(ctx context.Context, key, value string, version int64) (store.Config, error) {
	c.mu.Lock()
	fire := c.conflict
	c.conflict = false
	c.mu.Unlock()
	if fire {
		return store.Config{}, store.ErrConflict
	}
	return c.ConfigStore.UpdateConfigIfVersion(ctx, key, value, version)
}

func TestRegisterIfAbsentRetriesOnConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	if _, err := s.InsertConfig(ctx, DefaultConfigKey(ScopeMerchant, "merchant_retry", connectors.TransactionPayment), "[]"); err != nil {
		t.Fatalf("InsertConfig() error = %v", err)
	}
	m := NewDefaultConfigManager(&conflictOnce{ConfigStore: s, conflict: true}, nil)

	retries := metrics.RoutingDefaultConfigUpdatesTotal.WithLabelValues("merchant", "payment", "conflict_retry")
	before := testutil.ToFloat64(retries)
	if err := m.RegisterIfAbsent(ctx, "merchant_retry", "pro_retry", "nuvei", "mca_r", connectors.TransactionPayment); err != nil {
		t.Fatalf("RegisterIfAbsent() error = %v", err)
	}
	if got := testutil.ToFloat64(retries) - before; got < 1 {
		t.Fatalf("conflict retries = %v, want >= 1", got)
	}
	list, _ := m.Get(ctx, ScopeMerchant, "merchant_retry", connectors.TransactionPayment)
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
}

func TestReplaceRequiresPermutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewDefaultConfigManager(memstore.New(), nil)
	for _, id := range []string{"mca_a", "mca_b"} {
		if err := m.RegisterIfAbsent(ctx, "merchant_perm", "pro_perm", "stripe", id, connectors.TransactionPayment); err != nil {
			t.Fatalf("RegisterIfAbsent() error = %v", err)
		}
	}
	a, b, c := FullStruct("stripe", "mca_a"), FullStruct("stripe", "mca_b"), FullStruct("stripe", "mca_c")

	tests := []struct {
		name    string
		updated []Choice
		wantMsg string
	}{
		{name: "reordered", updated: []Choice{b, a}},
		{name: "shorter", updated: []Choice{a}, wantMsg: "current config and updated config have different lengths"},
		{name: "unknown entry", updated: []Choice{a, c}, wantMsg: "a connector present in the updated config is missing from the current config"},
		{name: "repeated entry", updated: []Choice{a, a}, wantMsg: "a connector present in the updated config is missing from the current config"},
	}
	for _, tc := range tests {
		got, err := m.Replace(ctx, ScopeProfile, "pro_perm", connectors.TransactionPayment, tc.updated)
		if tc.wantMsg == "" {
			if err != nil {
				t.Fatalf("%s: Replace() error = %v", tc.name, err)
			}
			if !got[0].Equal(b) {
				t.Fatalf("%s: Replace() = %v, want b first", tc.name, got)
			}
			continue
		}
		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Message != tc.wantMsg {
			t.Fatalf("%s: Replace() error = %v, want %q", tc.name, err, tc.wantMsg)
		}
	}
	stored, _ := m.Get(ctx, ScopeProfile, "pro_perm", connectors.TransactionPayment)
	if !stored[0].Equal(b) || !stored[1].Equal(a) {
		t.Fatalf("stored = %v, want [b a]", stored)
	}
}

func TestDefaultConfigKeySeparatesScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scope Scope
		txn   connectors.TransactionType
		want  string
	}{
		{scope: ScopeProfile, txn: connectors.TransactionPayment, want: "routing_default_shared_id"},
		{scope: ScopeProfile, txn: connectors.TransactionPayout, want: "routing_default_po_shared_id"},
		{scope: ScopeMerchant, txn: connectors.TransactionPayment, want: "routing_default_merchant_shared_id"},
		{scope: ScopeMerchant, txn: connectors.TransactionPayout, want: "routing_default_po_merchant_shared_id"},
	}
	for _, tc := range tests {
		if got := DefaultConfigKey(tc.scope, "shared_id", tc.txn); got != tc.want {
			t.Fatalf("DefaultConfigKey(%s, %s) = %q, want %q", tc.scope, tc.txn, got, tc.want)
		}
	}
}

func TestRegisterIfAbsentMerchantAndProfileWithSameID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewDefaultConfigManager(memstore.New(), nil)
	if err := m.RegisterIfAbsent(ctx, "shared_id", "shared_id", "stripe", "mca_1", connectors.TransactionPayment); err != nil {
		t.Fatalf("RegisterIfAbsent() error = %v", err)
	}
	if err := m.RegisterIfAbsent(ctx, "shared_id", "pro_other", "adyen", "mca_2", connectors.TransactionPayment); err != nil {
		t.Fatalf("RegisterIfAbsent(second) error = %v", err)
	}

	merchant, err := m.Get(ctx, ScopeMerchant, "shared_id", connectors.TransactionPayment)
	if err != nil || len(merchant) != 2 {
		t.Fatalf("Get(merchant) = %v, %v, want two entries", merchant, err)
	}
	profile, err := m.Get(ctx, ScopeProfile, "shared_id", connectors.TransactionPayment)
	if err != nil || len(profile) != 1 || !profile[0].Equal(FullStruct("stripe", "mca_1")) {
		t.Fatalf("Get(profile) = %v, %v, want only the stripe entry", profile, err)
	}
}

func TestChoiceEqualIncludesKind(t *testing.T) {
	t.Parallel()

	full := FullStruct("stripe", "mca_1")
	only := Choice{Kind: KindOnlyConnector, Connector: "stripe", MerchantConnectorID: full.MerchantConnectorID}
	if full.Equal(only) {
		t.Fatalf("Equal() = true for different kinds")
	}
	if !Contains([]Choice{only, FullStruct("stripe", "mca_1")}, full) {
		t.Fatalf("Contains() = false, want true")
	}
	raw, err := json.Marshal(full)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `{"choice_kind":"full_struct","connector":"stripe","merchant_connector_id":"mca_1"}` {
		t.Fatalf("Marshal() = %s", raw)
	}
}

func TestValidateList(t *testing.T) {
	t.Parallel()

	if err := ValidateList([]Choice{FullStruct("stripe", "mca_1"), {Kind: KindOnlyConnector, Connector: "adyen"}}); err != nil {
		t.Fatalf("ValidateList() error = %v", err)
	}
	if err := ValidateList([]Choice{FullStruct("plaid", "mca_1")}); apperr.CodeOf(err) != apperr.CodeInvalidDataValue {
		t.Fatalf("ValidateList(pm auth connector) error = %v", err)
	}
	if err := ValidateList([]Choice{FullStruct("signifyd", "mca_1")}); err != nil {
		t.Fatalf("ValidateList(fraud check connector) error = %v", err)
	}
	if err := ValidateList([]Choice{{Kind: KindFullStruct, Connector: "stripe"}}); apperr.CodeOf(err) != apperr.CodeMissingField {
		t.Fatalf("ValidateList(no account) error = %v", err)
	}
}

func TestValidateAlgorithm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: ""},
		{raw: "null"},
		{raw: `{"type":"single","data":{"connector":"stripe"}}`},
		{raw: `{"type":"volume_split","data":[]}`},
		{raw: `{"type":"random"}`, wantErr: true},
		{raw: `[1]`, wantErr: true},
	}
	for _, tc := range tests {
		err := ValidateAlgorithm("routing_algorithm", json.RawMessage(tc.raw))
		if (err != nil) != tc.wantErr {
			t.Fatalf("ValidateAlgorithm(%q) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
		}
	}
}

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, keys ...string) error {
	p.keys = append(p.keys, keys...)
	return p.err
}

func TestActivatePublishesProfileCacheKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memstore.New()
	profile, err := s.InsertProfile(ctx, store.BusinessProfile{ProfileID: "pro_act", MerchantID: "merchant_act", ProfileName: "default"})
	if err != nil {
		t.Fatalf("InsertProfile() error = %v", err)
	}

	pub := &recordingPublisher{}
	a := NewAlgorithmActivator(s, pub, nil)
	updated, err := a.Activate(ctx, profile, "routing_abc", connectors.TransactionPayout)
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	var ref AlgorithmRef
	if err := json.Unmarshal(updated.PayoutRoutingAlgorithm, &ref); err != nil || ref.AlgorithmID == nil || *ref.AlgorithmID != "routing_abc" {
		t.Fatalf("payout routing algorithm = %s, err %v", updated.PayoutRoutingAlgorithm, err)
	}
	if store.Present(updated.RoutingAlgorithm) {
		t.Fatalf("payment routing algorithm = %s, want untouched", updated.RoutingAlgorithm)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "routing_config_merchant_act_pro_act" {
		t.Fatalf("published keys = %v", pub.keys)
	}

	pub.err = errors.New("redis down")
	if _, err := a.Activate(ctx, profile, "routing_def", connectors.TransactionPayment); apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("Activate() with failing publisher error = %v, want internal", err)
	}
}
