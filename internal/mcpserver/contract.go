package mcpserver

// SnapshotFormatContract describes the JSON snapshot format used by the
// annotation store, for LLM consumers reading or generating snapshots.
const SnapshotFormatContract = `# Inkscan Snapshot Format Contract

Every annotation snapshot stored by Inkscan follows this JSON structure.

## Structure

` + "```" + `json
{
  "zoom": 1.5,
  "center": [4200.0, 6100.0],
  "annotations": [
    {
      "type": "polyline",
      "coordinates": [[120.5, 340.2], [121.0, 341.7]],
      "color": "#ff0000",
      "weight": 2.0
    }
  ],
  "image_name": "slide_0001",
  "image_dimensions": {"width": 98304, "height": 65536},
  "saved_at": "2025-01-20T14:30:00Z"
}
` + "```" + `

## Rules

1. **zoom** is the viewer zoom factor. 0 means "fit to the start level".
2. **center** is a two-element array in (y, x) order, in viewport
   coordinates at the current level.
3. **annotations** is a list of polylines. Each coordinate pair is
   (y, x). ` + "`" + `color` + "`" + ` is a CSS color string, ` + "`" + `weight` + "`" + ` the stroke width.
4. **image_name**, **image_dimensions** and **saved_at** appear on
   manually saved views; live-tracking snapshots may omit them.
5. Files are named with five-digit zero-padded sequence numbers
   (` + "`" + `00000.json` + "`" + `, ` + "`" + `00001.json` + "`" + `, ...). Live-tracking snapshots live in
   ` + "`" + `live_tracking/` + "`" + `, manual checkpoints in ` + "`" + `saved_views/` + "`" + `.
6. Encoding is UTF-8.
`
