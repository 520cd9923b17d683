// Package bridge converts render options into the fixed-layout record the
// renderer reads, and owns every buffer that record points to.
//
// The record layout is described once as a WIT record (RecordSchema) and
// laid out with C alignment rules, giving the wasm32 offsets:
//
//	width 0  height 4  zoom 8  dpi 12  skip_system_fonts 16
//	background 20  export_id 24  export_area_page 28  export_area_drawing 29
//	resources_dir 32  fonts 36  font_lens 40  font_count 44
//	font_file 48  font_dir 52  (size 56, align 4)
//
// Absent options are encoded as sentinels: -1 for width and height, 0 for
// zoom and the null pointer for strings and the font arrays.
//
// Every allocation made by a Bridge is recorded in its Scratch set and freed
// by Release, which callers defer right after New:
//
//	b := bridge.New(mem, alloc)
//	defer b.Release()
//
// The renderer's output buffer is never part of the set; it is released
// through the renderer's own entry point by package render.
package bridge
