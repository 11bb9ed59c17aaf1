package precompiled

// pricer accumulates gas for the table/CRUD-shaped operations spec.md
// §4.5 lists (OpenTable, Select, Insert, Update, Remove, CreateTable,
// comparison operators, Limit, Set) plus bytes-used, and produces a
// total. Grounded on the teacher's dynamic_gas-style per-operation
// accounting, generalized from opcode costs to table operations.
type pricer struct {
	total uint64
}

const (
	gasOpenTable   = 2000
	gasCreateTable = 5000
	gasSelect      = 100
	gasInsert      = 200
	gasUpdate      = 200
	gasRemove      = 200
	gasCondition   = 10 // per EQ/NE/GT/GE/LT/LE term
	gasLimit       = 10
	gasSetField    = 20
	gasPerByte     = 1
)

func (p *pricer) charge(amount uint64) { p.total += amount }

func (p *pricer) openTable() uint64   { p.charge(gasOpenTable); return p.total }
func (p *pricer) createTable() uint64 { p.charge(gasCreateTable); return p.total }
func (p *pricer) selectOp(rows int) uint64 {
	p.charge(gasSelect * uint64(rows+1))
	return p.total
}
func (p *pricer) insert() uint64          { p.charge(gasInsert); return p.total }
func (p *pricer) update() uint64          { p.charge(gasUpdate); return p.total }
func (p *pricer) remove() uint64          { p.charge(gasRemove); return p.total }
func (p *pricer) condition(terms int) uint64 {
	p.charge(gasCondition * uint64(terms))
	return p.total
}
func (p *pricer) limit() uint64 { p.charge(gasLimit); return p.total }
func (p *pricer) set() uint64   { p.charge(gasSetField); return p.total }
func (p *pricer) bytes(n int) uint64 {
	p.charge(gasPerByte * uint64(n))
	return p.total
}
