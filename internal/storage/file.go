package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileStore keeps checkpoints in one JSON file per tier.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

type fileState struct {
	Status      TierStatus               `json:"status"`
	Balances    map[string]BalanceRow    `json:"balances"`
	KLast       map[string]KLastRow      `json:"k_last"`
	Supply      map[string]SupplyRow     `json:"supply"`
	RewardPools map[string]RewardPoolRow `json:"reward_pools"`
	RewardUsers map[string]RewardUserRow `json:"reward_users"`
}

func newFileState() *fileState {
	return &fileState{
		Status:      TierStatus{Cursor: -1},
		Balances:    map[string]BalanceRow{},
		KLast:       map[string]KLastRow{},
		Supply:      map[string]SupplyRow{},
		RewardPools: map[string]RewardPoolRow{},
		RewardUsers: map[string]RewardUserRow{},
	}
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(tier string) string {
	return filepath.Join(s.dir, tier+".json")
}

func (s *FileStore) load(tier string) (*fileState, bool, error) {
	data, err := os.ReadFile(s.path(tier))
	if err != nil {
		if os.IsNotExist(err) {
			return newFileState(), false, nil
		}
		return nil, false, fmt.Errorf("read checkpoint: %w", err)
	}
	st := newFileState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return st, true, nil
}

// SaveCheckpoint merges cp into the tier file and replaces it atomically.
func (s *FileStore) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if err := validTier(cp.Tier); err != nil {
		return &PersistenceError{Tier: cp.Tier, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := newFileState()
	if !cp.FullRewrite {
		loaded, _, err := s.load(cp.Tier)
		if err != nil {
			return &PersistenceError{Tier: cp.Tier, Err: err}
		}
		st = loaded
	}
	for _, r := range cp.Balances {
		st.Balances[r.Class+"|"+r.Tick+"|"+r.Address] = r
	}
	for _, r := range cp.KLast {
		st.KLast[r.Pair] = r
	}
	for _, r := range cp.Supply {
		st.Supply[r.Pair] = r
	}
	for _, r := range cp.RewardPools {
		st.RewardPools[r.Pair] = r
	}
	for _, r := range cp.RewardUsers {
		st.RewardUsers[r.Pair+"|"+r.Address] = r
	}
	st.Status = cp.Status
	st.Status.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.write(cp.Tier, st); err != nil {
		return &PersistenceError{Tier: cp.Tier, Err: err}
	}
	return nil
}

func (s *FileStore) write(tier string, st *fileState) error {
	if s.dir != "" && s.dir != "." {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	path := s.path(tier)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns every durable row of tier, or nil if none was saved.
func (s *FileStore) LoadCheckpoint(ctx context.Context, tier string) (*Checkpoint, error) {
	if err := validTier(tier); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok, err := s.load(tier)
	if err != nil || !ok {
		return nil, err
	}
	cp := &Checkpoint{Tier: tier, Status: st.Status}
	for _, k := range sortedKeys(st.Balances) {
		cp.Balances = append(cp.Balances, st.Balances[k])
	}
	for _, k := range sortedKeys(st.KLast) {
		cp.KLast = append(cp.KLast, st.KLast[k])
	}
	for _, k := range sortedKeys(st.Supply) {
		cp.Supply = append(cp.Supply, st.Supply[k])
	}
	for _, k := range sortedKeys(st.RewardPools) {
		cp.RewardPools = append(cp.RewardPools, st.RewardPools[k])
	}
	for _, k := range sortedKeys(st.RewardUsers) {
		cp.RewardUsers = append(cp.RewardUsers, st.RewardUsers[k])
	}
	return cp, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
