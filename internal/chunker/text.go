package chunker

import "strings"

// chunkParagraphs splits plain text on blank lines, merging consecutive
// paragraphs forward until each chunk has at least opts.MinChunkLines
// lines, per spec §4.3.
func chunkParagraphs(content []byte, opts Options) []Chunk {
	lines := splitLinesKeepEnds(content)
	if len(lines) == 0 {
		return nil
	}

	var paragraphs [][2]int // [start, end) line index ranges
	start := -1
	for i, line := range lines {
		blank := strings.TrimSpace(line) == ""
		if blank {
			if start >= 0 {
				paragraphs = append(paragraphs, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		paragraphs = append(paragraphs, [2]int{start, len(lines)})
	}

	var chunks []Chunk
	i := 0
	for i < len(paragraphs) {
		s, e := paragraphs[i][0], paragraphs[i][1]
		j := i
		for (e-s) < opts.MinChunkLines && j+1 < len(paragraphs) {
			j++
			e = paragraphs[j][1]
		}
		c := linesToChunk(lines, s, e)
		c.NodeType = "paragraph"
		chunks = append(chunks, c)
		i = j + 1
	}

	return chunks
}

// chunkLines splits content into fixed-size windows of opts.LineChunkSize
// lines, carrying opts.LineOverlap lines forward into the next window.
func chunkLines(content []byte, opts Options) []Chunk {
	lines := splitLinesKeepEnds(content)
	if len(lines) == 0 {
		return nil
	}

	size := opts.LineChunkSize
	overlap := opts.LineOverlap
	if overlap >= size {
		overlap = size - 1
	}
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	for start := 0; start < len(lines); start += step {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		c := linesToChunk(lines, start, end)
		c.NodeType = "lines"
		chunks = append(chunks, c)
		if end == len(lines) {
			break
		}
	}

	return chunks
}
