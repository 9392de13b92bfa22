package vcf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyLine(t *testing.T) {
	require.Equal(t, Meta, ClassifyLine("##fileformat=VCFv4.2"))
	require.Equal(t, Header, ClassifyLine("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsampleA"))
	require.Equal(t, Data, ClassifyLine("1\t100\t.\tA\tG\t.\tPASS\t.\tGT\t0/1"))
	require.Equal(t, Data, ClassifyLine(""))
}

func TestMetaPair(t *testing.T) {
	key, value, ok := MetaPair("##fileformat=VCFv4.2")
	require.True(t, ok)
	require.Equal(t, "fileformat", key)
	require.Equal(t, "VCFv4.2", value)

	_, _, ok = MetaPair("#CHROM\tPOS")
	require.False(t, ok)
}

func TestParseHeaderSplitsGenomeNames(t *testing.T) {
	line := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsampleA\tsampleB"
	idx, ok := ParseHeader(line)
	require.True(t, ok)
	require.Equal(t, []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}, idx.Columns)
	require.Equal(t, []string{"sampleA", "sampleB"}, idx.Samples)
}

func TestParseHeaderRejectsNonHeaderLine(t *testing.T) {
	_, ok := ParseHeader("1\t100\t.\tA\tG\t.\tPASS\t.\tGT")
	require.False(t, ok)
}
