package types

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHexBytes(t *testing.T) {
	c := qt.New(t)

	c.Run("String", func(c *qt.C) {
		c.Assert(HexBytes(nil).String(), qt.Equals, "0x")
		c.Assert(HexBytes{0x00, 0xab, 0xcd}.String(), qt.Equals, "0x00abcd")
	})

	c.Run("JSON", func(c *qt.C) {
		data, err := json.Marshal(HexBytes{0xde, 0xad})
		c.Assert(err, qt.IsNil)
		c.Assert(string(data), qt.Equals, `"0xdead"`)

		var decoded HexBytes
		c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
		c.Assert(decoded.Equal(HexBytes{0xde, 0xad}), qt.IsTrue)

		c.Assert(json.Unmarshal([]byte(`"beef"`), &decoded), qt.IsNil)
		c.Assert(decoded.Equal(HexBytes{0xbe, 0xef}), qt.IsTrue)

		c.Assert(json.Unmarshal([]byte(`"0x"`), &decoded), qt.IsNil)
		c.Assert(decoded, qt.HasLen, 0)
	})

	c.Run("invalid", func(c *qt.C) {
		var decoded HexBytes
		c.Assert(json.Unmarshal([]byte(`"0xabc"`), &decoded), qt.IsNotNil)
		c.Assert(json.Unmarshal([]byte(`"zz"`), &decoded), qt.IsNotNil)
		c.Assert(json.Unmarshal([]byte(`12`), &decoded), qt.IsNotNil)
	})
}
