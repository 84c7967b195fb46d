package gamedata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paissahouse/paissadb/paissa"
	paissatesting "github.com/paissahouse/paissadb/utils/pkg/testing"
)

func writeGamedataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// fixtureDir writes a minimal EXD export: three header rows per file,
// then data.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeGamedataFile(t, dir, "WorldDCGroupType.csv", strings.Join([]string{
		"key,0,1",
		"#,Name,Region",
		"int32,str,byte",
		"0,,0",
		"8,Crystal,2",
		"9,Aether,2",
		"",
	}, "\n"))

	writeGamedataFile(t, dir, "World.csv", strings.Join([]string{
		"key,0,1,2",
		"#,Name,DataCenter,IsPublic",
		"int32,str,byte,bool",
		"0,,0,False",
		"31415,Siren,9,True",
		"74,Coeurl,8,True",
		"1040,Devworld,9,False",
		"2048,Orphan,0,True",
		"",
	}, "\n"))

	writeGamedataFile(t, dir, "PlaceName.csv", strings.Join([]string{
		"key,0",
		"#,Name",
		"int32,str",
		"425,Mist",
		"426,The Lavender Beds",
		"9999,Somewhere Else",
		"",
	}, "\n"))

	writeGamedataFile(t, dir, "TerritoryType.csv", strings.Join([]string{
		"key,0,1",
		"#,PlaceName,TerritoryIntendedUse",
		"int32,int32,byte",
		"128,9999,0",
		"339,425,13",
		"340,426,13",
		"1050,9999,13",
		"",
	}, "\n"))

	sizes := make([]string, 0, paissa.PlotsPerWard*2+1)
	header := make([]string, 0, paissa.PlotsPerWard*2+1)
	header = append(header, "#")
	sizesRow0 := []string{"0"}
	sizesRow1 := []string{"1"}
	for i := 0; i < paissa.PlotsPerWard; i++ {
		header = append(header, fmt.Sprintf("PlotSize[%d]", i))
		sizesRow0 = append(sizesRow0, fmt.Sprintf("%d", i%3))
		sizesRow1 = append(sizesRow1, fmt.Sprintf("%d", (i+1)%3))
	}
	for i := 0; i < paissa.PlotsPerWard; i++ {
		header = append(header, fmt.Sprintf("InitialPrice[%d]", i))
		sizesRow0 = append(sizesRow0, fmt.Sprintf("%d", 1_000_000+i))
		sizesRow1 = append(sizesRow1, fmt.Sprintf("%d", 2_000_000+i))
	}
	sizes = append(sizes,
		"key,"+strings.Repeat("x,", paissa.PlotsPerWard*2-1)+"x",
		strings.Join(header, ","),
		"int32,"+strings.Repeat("byte,", paissa.PlotsPerWard*2-1)+"byte",
		strings.Join(sizesRow0, ","),
		strings.Join(sizesRow1, ","),
		"",
	)
	writeGamedataFile(t, dir, "HousingLandSet.csv", strings.Join(sizes, "\n"))

	return dir
}

func TestPaissa_Gamedata_LoadWorlds(t *testing.T) {
	t.Parallel()
	dir := fixtureDir(t)

	worlds, err := LoadWorlds(dir)
	require.NoError(t, err)
	require.Len(t, worlds, 2, "non-public and datacenter-0 worlds are skipped")

	byID := make(map[int]paissa.World)
	for _, w := range worlds {
		byID[w.ID] = w
	}
	require.Equal(t, "Siren", byID[31415].Name)
	require.Equal(t, 9, byID[31415].DatacenterID)
	require.Equal(t, "Aether", byID[31415].DatacenterName)
	require.Equal(t, "Crystal", byID[74].DatacenterName)
}

func TestPaissa_Gamedata_LoadDistricts(t *testing.T) {
	t.Parallel()
	dir := fixtureDir(t)

	districts, err := LoadDistricts(paissatesting.NewLogger(), dir)
	require.NoError(t, err)
	require.Len(t, districts, 2, "unmapped housing territory 1050 is skipped")

	require.Equal(t, 339, districts[0].ID)
	require.Equal(t, "Mist", districts[0].Name)
	require.Equal(t, 0, districts[0].LandSetID)
	require.Equal(t, 340, districts[1].ID)
	require.Equal(t, "The Lavender Beds", districts[1].Name)
	require.Equal(t, 1, districts[1].LandSetID)
}

func TestPaissa_Gamedata_LoadPlotInfo(t *testing.T) {
	t.Parallel()
	dir := fixtureDir(t)

	districts, err := LoadDistricts(paissatesting.NewLogger(), dir)
	require.NoError(t, err)
	plotInfo, err := LoadPlotInfo(dir, districts)
	require.NoError(t, err)
	require.Len(t, plotInfo, 2*paissa.PlotsPerWard)

	first := plotInfo[0]
	require.Equal(t, 339, first.DistrictID)
	require.Equal(t, 0, first.PlotNumber)
	require.Equal(t, 0, first.HouseSize)
	require.Equal(t, 1_000_000, first.HouseBasePrice)

	// plot 5 of land set 1
	lav := plotInfo[paissa.PlotsPerWard+5]
	require.Equal(t, 340, lav.DistrictID)
	require.Equal(t, 5, lav.PlotNumber)
	require.Equal(t, (5+1)%3, lav.HouseSize)
	require.Equal(t, 2_000_005, lav.HouseBasePrice)
}

func TestPaissa_Gamedata_Load(t *testing.T) {
	t.Parallel()
	dir := fixtureDir(t)

	data, err := Load(paissatesting.NewLogger(), dir)
	require.NoError(t, err)
	require.Len(t, data.Worlds, 2)
	require.Len(t, data.Districts, 2)
	require.Len(t, data.PlotInfo, 2*paissa.PlotsPerWard)
}

func TestPaissa_Gamedata_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(paissatesting.NewLogger(), t.TempDir())
	require.Error(t, err)
}
