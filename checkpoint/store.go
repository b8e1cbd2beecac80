// Package checkpoint persists and restores the state spec.md §6 lists as
// sufficient to resume a simulation in atomic mode: valid cache blocks and
// their data, MSHR targets in their original form, writeback buffer
// contents, and CPU register file plus PC. It is grounded on the same
// database/sql + mattn/go-sqlite3 persistence shape the teacher's
// tracing/sqlite.go uses for trace events, reused here for stats/sqlite.go's
// run snapshots and now for full-state checkpoints.
package checkpoint

import (
	"database/sql"
	"fmt"

	// Registers the sqlite3 driver under database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/archsim/memhier/cache"
	"github.com/archsim/memhier/cpu"
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/mshr"
	"github.com/archsim/memhier/mem/tagstore"
	"github.com/archsim/memhier/sim"
)

// Store is a single checkpoint file. Save and Restore operate against the
// most recent contents written — the file holds one checkpoint at a time,
// not a history.
type Store struct {
	*sql.DB
	path string
}

// NewStore creates a Store backed by the SQLite file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init opens the database connection and creates the checkpoint tables if
// they do not already exist.
func (s *Store) Init() {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		panic(err)
	}
	s.DB = db

	s.mustExecute(`CREATE TABLE IF NOT EXISTS checkpoint_blocks (
		cache         TEXT    NOT NULL,
		set_index     INTEGER NOT NULL,
		way_index     INTEGER NOT NULL,
		tag           INTEGER NOT NULL,
		status        INTEGER NOT NULL,
		data          BLOB    NOT NULL,
		src_master    INTEGER NOT NULL,
		last_ref_tick REAL    NOT NULL
	)`)
	s.mustExecute(`CREATE TABLE IF NOT EXISTS checkpoint_mshr_targets (
		cache          TEXT    NOT NULL,
		block_addr     INTEGER NOT NULL,
		orig_cmd       INTEGER NOT NULL,
		bus_cmd        INTEGER NOT NULL,
		in_service     INTEGER NOT NULL,
		issue_tick     REAL    NOT NULL,
		target_index   INTEGER NOT NULL,
		req_paddr      INTEGER NOT NULL,
		req_vaddr      INTEGER NOT NULL,
		req_size       INTEGER NOT NULL,
		req_flags      INTEGER NOT NULL,
		req_master     INTEGER NOT NULL,
		req_issue_tick REAL    NOT NULL,
		pkt_cmd        INTEGER NOT NULL,
		pkt_addr       INTEGER NOT NULL,
		pkt_size       INTEGER NOT NULL
	)`)
	s.mustExecute(`CREATE TABLE IF NOT EXISTS checkpoint_writebacks (
		cache      TEXT    NOT NULL,
		block_addr INTEGER NOT NULL,
		data       BLOB    NOT NULL,
		in_service INTEGER NOT NULL
	)`)
	s.mustExecute(`CREATE TABLE IF NOT EXISTS checkpoint_cpu (
		cpu             TEXT    NOT NULL,
		pc              INTEGER NOT NULL,
		locked_addr     INTEGER NOT NULL,
		has_locked_addr INTEGER NOT NULL,
		registers       BLOB
	)`)
}

func (s *Store) mustExecute(query string, args ...any) {
	if _, err := s.Exec(query, args...); err != nil {
		panic(fmt.Errorf("checkpoint: %q: %w", query, err))
	}
}

// Save replaces the file's contents with the full resumable state of every
// cache and cpu given. Every cache must already report Drain() == true:
// spec.md §6 requires timing-only packet state be drained to Drained before
// serialization, and Save does not check this itself.
func (s *Store) Save(caches []*cache.Cache, cpus []*cpu.TimingCPU) {
	s.mustExecute("DELETE FROM checkpoint_blocks")
	s.mustExecute("DELETE FROM checkpoint_mshr_targets")
	s.mustExecute("DELETE FROM checkpoint_writebacks")
	s.mustExecute("DELETE FROM checkpoint_cpu")

	tx, err := s.Begin()
	if err != nil {
		panic(err)
	}

	for _, c := range caches {
		saveBlocks(tx, c)
		saveMSHRs(tx, c)
		saveWritebacks(tx, c)
	}
	for _, p := range cpus {
		saveCPU(tx, p)
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}
}

func saveBlocks(tx *sql.Tx, c *cache.Cache) {
	for _, blk := range c.TagStore().AllBlocks() {
		if !blk.IsValid() {
			continue
		}
		_, err := tx.Exec(
			`INSERT INTO checkpoint_blocks
			 (cache, set_index, way_index, tag, status, data, src_master, last_ref_tick)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name(), blk.SetIndex, blk.WayIndex, blk.Tag, int(blk.Status), blk.Data,
			int(blk.SrcMasterID), float64(blk.LastRefTick),
		)
		if err != nil {
			panic(err)
		}
	}
}

func saveMSHRs(tx *sql.Tx, c *cache.Cache) {
	for blockAddr, m := range c.MSHRQueue().AllOutstanding() {
		for i, t := range m.Targets {
			_, err := tx.Exec(
				`INSERT INTO checkpoint_mshr_targets
				 (cache, block_addr, orig_cmd, bus_cmd, in_service, issue_tick, target_index,
				  req_paddr, req_vaddr, req_size, req_flags, req_master, req_issue_tick,
				  pkt_cmd, pkt_addr, pkt_size)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.Name(), blockAddr, int(m.OrigCmd), int(m.BusCmd), boolToInt(m.InService),
				float64(m.IssueTick), i,
				t.Req.PAddr, t.Req.VAddr, t.Req.Size, uint32(t.Req.Flags), int(t.Req.MasterID),
				float64(t.Req.IssueTick), int(t.Cmd), t.Addr, t.Size,
			)
			if err != nil {
				panic(err)
			}
		}
	}
}

func saveWritebacks(tx *sql.Tx, c *cache.Cache) {
	for _, wb := range c.MSHRQueue().AllWritebacks() {
		_, err := tx.Exec(
			`INSERT INTO checkpoint_writebacks (cache, block_addr, data, in_service) VALUES (?, ?, ?, ?)`,
			c.Name(), wb.BlockAddr, wb.Pkt.Data(), boolToInt(wb.InService),
		)
		if err != nil {
			panic(err)
		}
	}
}

func saveCPU(tx *sql.Tx, p *cpu.TimingCPU) {
	lockedAddr, held := p.LockState()
	_, err := tx.Exec(
		`INSERT INTO checkpoint_cpu (cpu, pc, locked_addr, has_locked_addr, registers) VALUES (?, ?, ?, ?, ?)`,
		p.Name(), p.PC(), lockedAddr, boolToInt(held), p.SaveRegisters(),
	)
	if err != nil {
		panic(err)
	}
}

// Restore reloads every named cache's tag-store blocks, MSHR targets, and
// writeback buffer, and every named cpu's PC, lock state, and register
// file, from the store's current contents. Caches and cpus must be freshly
// constructed (Idle, empty tag stores) — Restore installs state directly
// rather than reconciling against anything already in flight.
func (s *Store) Restore(caches map[string]*cache.Cache, cpus map[string]*cpu.TimingCPU) {
	for name, c := range caches {
		restoreBlocks(s.DB, name, c)
		restoreMSHRs(s.DB, name, c)
		restoreWritebacks(s.DB, name, c)
	}
	for name, p := range cpus {
		restoreCPU(s.DB, name, p)
	}
}

func restoreBlocks(db *sql.DB, name string, c *cache.Cache) {
	rows, err := db.Query(
		`SELECT set_index, way_index, tag, status, data, src_master, last_ref_tick
		 FROM checkpoint_blocks WHERE cache = ?`, name)
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	ts := c.TagStore()
	for rows.Next() {
		var set, way, status, srcMaster int
		var tag uint64
		var data []byte
		var lastRef float64

		if err := rows.Scan(&set, &way, &tag, &status, &data, &srcMaster, &lastRef); err != nil {
			panic(err)
		}

		blk := ts.BlockAt(set, way)
		blk.Tag = tag
		blk.Status = tagstore.Status(status)
		copy(blk.Data, data)
		blk.SrcMasterID = mem.MasterID(srcMaster)
		blk.LastRefTick = sim.VTimeInSec(lastRef)
	}
}

type mshrTargetRow struct {
	blockAddr                                                    uint64
	origCmd, busCmd, inService, targetIndex, size, master, pktCmd int
	issueTick, reqIssueTick                                       float64
	paddr, vaddr, pktAddr                                         uint64
	flags                                                         uint32
	pktSize                                                       int
}

func restoreMSHRs(db *sql.DB, name string, c *cache.Cache) {
	rows, err := db.Query(
		`SELECT block_addr, orig_cmd, bus_cmd, in_service, issue_tick, target_index,
		        req_paddr, req_vaddr, req_size, req_flags, req_master, req_issue_tick,
		        pkt_cmd, pkt_addr, pkt_size
		 FROM checkpoint_mshr_targets WHERE cache = ? ORDER BY block_addr, target_index`, name)
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	var order []uint64
	byBlock := map[uint64][]mshrTargetRow{}

	for rows.Next() {
		var r mshrTargetRow
		if err := rows.Scan(
			&r.blockAddr, &r.origCmd, &r.busCmd, &r.inService, &r.issueTick, &r.targetIndex,
			&r.paddr, &r.vaddr, &r.size, &r.flags, &r.master, &r.reqIssueTick,
			&r.pktCmd, &r.pktAddr, &r.pktSize,
		); err != nil {
			panic(err)
		}

		if _, seen := byBlock[r.blockAddr]; !seen {
			order = append(order, r.blockAddr)
		}
		byBlock[r.blockAddr] = append(byBlock[r.blockAddr], r)
	}

	for _, blockAddr := range order {
		rs := byBlock[blockAddr]

		// No MSHR size is saved (req_size is a target's own size); every
		// MSHR a cache allocates spans exactly one block.
		m := &mshr.MSHR{
			BlockAddr: blockAddr,
			Size:      c.TagStore().BlockSize(),
			IssueTick: sim.VTimeInSec(rs[0].issueTick),
			InService: rs[0].inService != 0,
			OrigCmd:   mem.Command(rs[0].origCmd),
			BusCmd:    mem.Command(rs[0].busCmd),
		}

		for _, r := range rs {
			req := mem.NewRequest(r.paddr, r.size, mem.ReqFlags(r.flags), sim.VTimeInSec(r.reqIssueTick))
			req.VAddr = r.vaddr
			req.MasterID = mem.MasterID(r.master)

			pkt := mem.NewPacket(req, mem.Command(r.pktCmd), r.pktAddr, r.pktSize)
			m.AddTarget(pkt)
		}

		c.MSHRQueue().Restore(m)
	}
}

func restoreWritebacks(db *sql.DB, name string, c *cache.Cache) {
	rows, err := db.Query(`SELECT block_addr, data, in_service FROM checkpoint_writebacks WHERE cache = ?`, name)
	if err != nil {
		panic(err)
	}
	defer rows.Close()

	for rows.Next() {
		var blockAddr uint64
		var data []byte
		var inService int

		if err := rows.Scan(&blockAddr, &data, &inService); err != nil {
			panic(err)
		}

		req := mem.NewRequest(blockAddr, len(data), 0, 0)
		pkt := mem.NewPacket(req, mem.WritebackReq, blockAddr, len(data))
		pkt.SetDynamicData(data)

		c.MSHRQueue().RestoreWriteback(&mshr.WritebackEntry{
			BlockAddr: blockAddr,
			Pkt:       pkt,
			InService: inService != 0,
		})
	}
}

func restoreCPU(db *sql.DB, name string, p *cpu.TimingCPU) {
	row := db.QueryRow(`SELECT pc, locked_addr, has_locked_addr, registers FROM checkpoint_cpu WHERE cpu = ?`, name)

	var pc, lockedAddr uint64
	var hasLocked int
	var registers []byte

	if err := row.Scan(&pc, &lockedAddr, &hasLocked, &registers); err != nil {
		panic(err)
	}

	p.SetPC(pc)
	p.RestoreLock(lockedAddr, hasLocked != 0)
	p.LoadRegisters(registers)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
