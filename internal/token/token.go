package token

import "strings"

// Standards lists the token standards the transfers endpoint can filter on.
func Standards() []string {
	return []string{"ERC-721", "ERC-20", "ERC-1155"}
}

// NormalizeStandard normalizes token standard labels
// like "erc721" to their canonical equivalents (e.g., "ERC-721").
func NormalizeStandard(standard string) string {
	s := strings.ToUpper(strings.TrimSpace(standard))
	switch strings.ReplaceAll(strings.ReplaceAll(s, "-", ""), "_", "") {
	case "ERC721":
		return "ERC-721"
	case "ERC20":
		return "ERC-20"
	case "ERC1155":
		return "ERC-1155"
	default:
		return s
	}
}
