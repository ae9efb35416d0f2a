package chunker

import "strings"

// chunkHeadings splits markdown content into one chunk per ATX heading and
// its body, up to the next heading. Fenced code blocks (``` or ~~~) never
// split, per spec §4.3.
func chunkHeadings(content []byte) []Chunk {
	lines := splitLinesKeepEnds(content)

	type boundary struct {
		lineIdx int // 0-based index into lines
		title   string
	}

	var boundaries []boundary
	inFence := false
	var fenceMarker string

	for i, line := range lines {
		trimmed := strings.TrimRight(line, "\n\r")
		fenced, marker := fenceToggle(trimmed, inFence, fenceMarker)
		if fenced != inFence {
			inFence = fenced
			fenceMarker = marker
			continue
		}
		if inFence {
			continue
		}
		if isATXHeading(trimmed) {
			boundaries = append(boundaries, boundary{lineIdx: i, title: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))})
		}
	}

	if len(boundaries) == 0 {
		// No headings: whole document is one chunk.
		return []Chunk{linesToChunk(lines, 0, len(lines))}
	}

	var chunks []Chunk
	for idx, b := range boundaries {
		end := len(lines)
		if idx+1 < len(boundaries) {
			end = boundaries[idx+1].lineIdx
		}
		c := linesToChunk(lines, b.lineIdx, end)
		c.NodeType = "heading"
		c.NodeName = b.title
		chunks = append(chunks, c)
	}

	// Preamble before the first heading, if any.
	if boundaries[0].lineIdx > 0 {
		pre := linesToChunk(lines, 0, boundaries[0].lineIdx)
		pre.NodeType = "preamble"
		chunks = append([]Chunk{pre}, chunks...)
	}

	return chunks
}

func isATXHeading(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i > 6 {
		return false
	}
	return i == len(trimmed) || trimmed[i] == ' ' || trimmed[i] == '\t'
}

// fenceToggle detects ``` / ~~~ fence lines and returns the new fence state.
func fenceToggle(line string, inFence bool, marker string) (bool, string) {
	trimmed := strings.TrimLeft(line, " ")
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, m) {
			if !inFence {
				return true, m
			}
			if inFence && strings.HasPrefix(trimmed, marker) {
				return false, ""
			}
		}
	}
	return inFence, marker
}

func splitLinesKeepEnds(content []byte) []string {
	s := string(content)
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func linesToChunk(lines []string, start, end int) Chunk {
	var b strings.Builder
	byteOffset := 0
	for i := 0; i < start; i++ {
		byteOffset += len(lines[i])
	}
	startByte := byteOffset
	for i := start; i < end; i++ {
		b.WriteString(lines[i])
		byteOffset += len(lines[i])
	}
	return Chunk{
		Content:   b.String(),
		StartLine: start + 1,
		EndLine:   end,
		StartByte: startByte,
		EndByte:   byteOffset,
	}
}
