package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/fabricfleet/portctl/pkg/inventory"
	"github.com/fabricfleet/portctl/pkg/util"
)

// SONiC database indexes.
const (
	configDBIndex = 4
	stateDBIndex  = 6
)

// ConfigDBExecutor manages SONiC switches through their config_db. Rendered
// CLI lines are translated into table writes; state reads combine the PORT
// entry from CONFIG_DB with oper status and FDB entries from STATE_DB.
type ConfigDBExecutor struct {
	src inventory.Source

	mu      sync.Mutex
	clients map[string]*dbPair
}

type dbPair struct {
	config *redis.Client
	state  *redis.Client
}

// NewConfigDBExecutor creates an executor that resolves devices through src.
func NewConfigDBExecutor(src inventory.Source) *ConfigDBExecutor {
	return &ConfigDBExecutor{
		src:     src,
		clients: make(map[string]*dbPair),
	}
}

// ReadState reads port state from the device databases.
func (e *ConfigDBExecutor) ReadState(ctx context.Context, device, iface string) (*PortState, error) {
	dbs, err := e.connect(device)
	if err != nil {
		return nil, err
	}

	port, err := dbs.config.HGetAll(ctx, "PORT|"+iface).Result()
	if err != nil {
		return nil, classifyNetErr(device, err)
	}

	state := &PortState{
		Exists:      len(port) > 0,
		AdminStatus: StatusUnknown,
		OperStatus:  StatusUnknown,
		Attributes:  make(map[string]string),
	}
	if !state.Exists {
		return state, nil
	}

	if v, ok := port["admin_status"]; ok {
		state.AdminStatus = v
	}
	if v, ok := port["description"]; ok {
		state.Attributes["description"] = v
	}

	oper, err := dbs.state.HGet(ctx, "PORT_TABLE|"+iface, "oper_status").Result()
	if err != nil && err != redis.Nil {
		return nil, classifyNetErr(device, err)
	}
	if oper != "" {
		state.OperStatus = oper
	}

	macs, err := e.learnedMACs(ctx, dbs.state, iface)
	if err != nil {
		return nil, classifyNetErr(device, err)
	}
	state.LearnedMACs = macs

	return state, nil
}

// ApplyCommands translates the batch and writes it in one pipeline.
func (e *ConfigDBExecutor) ApplyCommands(ctx context.Context, device string, commands []string) error {
	writes, err := TranslateCommands(commands)
	if err != nil {
		return util.NewRejectedError(device, err.Error())
	}

	dbs, err := e.connect(device)
	if err != nil {
		return err
	}

	pipe := dbs.config.Pipeline()
	for _, w := range writes {
		if len(w.Fields) == 0 {
			// table presence marker (e.g. VRF|name with no fields yet)
			pipe.HSet(ctx, w.RedisKey(), "NULL", "NULL")
			continue
		}
		args := make([]interface{}, 0, len(w.Fields)*2)
		for k, v := range w.Fields {
			args = append(args, k, v)
		}
		pipe.HSet(ctx, w.RedisKey(), args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return classifyNetErr(device, err)
	}

	util.WithDevice(device).Debugf("wrote %d config_db entries", len(writes))
	return nil
}

// stateReader is the subset of redis.Client that learnedMACs needs.
type stateReader interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// learnedMACs scans STATE_DB FDB entries for MACs learned on iface.
func (e *ConfigDBExecutor) learnedMACs(ctx context.Context, state stateReader, iface string) ([]string, error) {
	var macs []string
	iter := state.Scan(ctx, 0, "FDB_TABLE|*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		port, err := state.HGet(ctx, key, "port").Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		if port != iface {
			continue
		}
		// key format: FDB_TABLE|Vlan100:aa:bb:cc:dd:ee:ff
		if idx := strings.Index(key, ":"); idx >= 0 {
			macs = append(macs, strings.ToLower(key[idx+1:]))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return macs, nil
}

// connect returns cached clients for the device, creating them on first use.
func (e *ConfigDBExecutor) connect(device string) (*dbPair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dbs, ok := e.clients[device]; ok {
		return dbs, nil
	}

	desc, err := e.src.Resolve(device)
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:6379", desc.MgmtAddr)
	dbs := &dbPair{
		config: redis.NewClient(&redis.Options{Addr: addr, DB: configDBIndex}),
		state:  redis.NewClient(&redis.Options{Addr: addr, DB: stateDBIndex}),
	}
	e.clients[device] = dbs
	return dbs, nil
}

// Close releases all cached connections.
func (e *ConfigDBExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var first error
	for _, dbs := range e.clients {
		if err := dbs.config.Close(); err != nil && first == nil {
			first = err
		}
		if err := dbs.state.Close(); err != nil && first == nil {
			first = err
		}
	}
	e.clients = make(map[string]*dbPair)
	return first
}
