package distribution

import "encoding/binary"

var (
	metaKeyBytes       = []byte("dist/meta")
	paramsKeyBytes     = []byte("dist/params")
	cyclePrefix        = []byte("dist/cycle/")
	poolsPrefix        = []byte("dist/pools/")
	snapSummaryPrefix  = []byte("dist/snap/sum/")
	snapWeightPrefix   = []byte("dist/snap/weight/")
	snapProgressPrefix = []byte("dist/snap/prog/")
	distProgressPrefix = []byte("dist/payout/prog/")
	claimPrefix        = []byte("dist/claim/")
	lifetimePrefix     = []byte("dist/lifetime/")
)

func appendUint64(buf []byte, v uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], v)
	return append(buf, raw[:]...)
}

func cycleKey(id uint64) []byte {
	return appendUint64(append([]byte(nil), cyclePrefix...), id)
}

func poolsKey(id uint64) []byte {
	return appendUint64(append([]byte(nil), poolsPrefix...), id)
}

func snapSummaryKey(id uint64, c Category) []byte {
	buf := appendUint64(append([]byte(nil), snapSummaryPrefix...), id)
	return append(buf, byte(c))
}

func snapWeightKey(id uint64, c Category, holder [20]byte) []byte {
	buf := appendUint64(append([]byte(nil), snapWeightPrefix...), id)
	buf = append(buf, byte(c))
	return append(buf, holder[:]...)
}

func snapProgressKey(id uint64, c Category) []byte {
	buf := appendUint64(append([]byte(nil), snapProgressPrefix...), id)
	return append(buf, byte(c))
}

func distProgressKey(id uint64, c Category) []byte {
	buf := appendUint64(append([]byte(nil), distProgressPrefix...), id)
	return append(buf, byte(c))
}

func claimKey(id uint64, holder [20]byte) []byte {
	buf := appendUint64(append([]byte(nil), claimPrefix...), id)
	return append(buf, holder[:]...)
}

func lifetimeKey(holder [20]byte) []byte {
	return append(append([]byte(nil), lifetimePrefix...), holder[:]...)
}
