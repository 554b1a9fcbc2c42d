package isis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNETExtractsSystemID(t *testing.T) {
	id, err := ParseNET("49.0001.1921.6800.1001.00")
	require.NoError(t, err)
	require.Equal(t, SystemID{0x19, 0x21, 0x68, 0x00, 0x10, 0x01}, id)
}

func TestParseNETMultiAreaPrefixIgnored(t *testing.T) {
	id, err := ParseNET("49.0001.0002.1921.6800.1001.00")
	require.NoError(t, err)
	require.Equal(t, SystemID{0x19, 0x21, 0x68, 0x00, 0x10, 0x01}, id)
}

func TestParseNETTooShort(t *testing.T) {
	_, err := ParseNET("49.0001.00")
	require.Error(t, err)
}

func TestParseNETMalformedHex(t *testing.T) {
	_, err := ParseNET("49.zzzz.6800.1001.00")
	require.Error(t, err)
}
