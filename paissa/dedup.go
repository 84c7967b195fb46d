package paissa

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Dedup key namespaces. The hash under the prefix identifies one plot
// observation; an identical observation within the key TTL maps to the
// same key and is dropped by SET NX.
const (
	WardInfoKeyPrefix    = "event.wardinfo.plot:"
	LotteryInfoKeyPrefix = "event.lotteryinfo.plot:"
)

// dedupHash packs the plot identity big-endian (world u32, district u32,
// ward u16, plot u16) followed by the owner name padded or truncated to
// 32 bytes, and returns the hex SHA-256 of the 44-byte buffer.
func dedupHash(worldID, districtID, wardNumber, plotNumber int, ownerName string) string {
	buf := make([]byte, 44)
	binary.BigEndian.PutUint32(buf[0:4], uint32(worldID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(districtID))
	binary.BigEndian.PutUint16(buf[8:10], uint16(wardNumber))
	binary.BigEndian.PutUint16(buf[10:12], uint16(plotNumber))
	copy(buf[12:], ownerName)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// WardInfoDedupKey returns the dedup key for one plot entry of a ward
// snapshot. The owner name is empty when the plot is unowned, so a sale
// or relocation changes the key and is never deduplicated away.
func WardInfoDedupKey(worldID, districtID, wardNumber, plotNumber int, ownerName string) string {
	return WardInfoKeyPrefix + dedupHash(worldID, districtID, wardNumber, plotNumber, ownerName)
}

// LotteryInfoDedupKey returns the dedup key for a lottery placard
// observation. Lottery observations carry no owner.
func LotteryInfoDedupKey(worldID, districtID, wardNumber, plotNumber int) string {
	return LotteryInfoKeyPrefix + dedupHash(worldID, districtID, wardNumber, plotNumber, "")
}
