package transcriber

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pairloop/pairloop/internal/repository"
)

// The batch provider writes its result JSON with camelCase keys but its
// in-memory API responses use snake_case for the same fields. Both forms
// must normalize to one canonical transcript, so every lookup below probes
// the camelCase key first and falls back to snake_case.

type rawObject map[string]json.RawMessage

func (o rawObject) pick(camel, snake string) (json.RawMessage, bool) {
	if v, ok := o[camel]; ok {
		return v, true
	}
	v, ok := o[snake]
	return v, ok
}

// NormalizeBatchResult converts a batch provider annotation result into the
// canonical transcript shape: concatenated full text plus per-sentence
// segments with confidence and optional word timings.
func NormalizeBatchResult(data []byte) (*repository.Transcript, error) {
	var root rawObject
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode batch result: %w", err)
	}

	annotationResults, err := decodeObjectList(root, "annotationResults", "annotation_results")
	if err != nil {
		return nil, err
	}

	var sentences []repository.TranscriptSentence
	for _, result := range annotationResults {
		transcriptions, err := decodeObjectList(result, "speechTranscriptions", "speech_transcriptions")
		if err != nil {
			return nil, err
		}
		for _, transcription := range transcriptions {
			alternatives, err := decodeObjectList(transcription, "alternatives", "alternatives")
			if err != nil {
				return nil, err
			}
			if len(alternatives) == 0 {
				continue
			}
			sentence, err := normalizeAlternative(alternatives[0])
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(sentence.Transcript) == "" {
				continue
			}
			sentences = append(sentences, sentence)
		}
	}

	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		parts = append(parts, strings.TrimSpace(s.Transcript))
	}
	return &repository.Transcript{
		Text:      strings.Join(parts, " "),
		Sentences: sentences,
	}, nil
}

func normalizeAlternative(alt rawObject) (repository.TranscriptSentence, error) {
	sentence := repository.TranscriptSentence{
		Transcript: decodeString(alt, "transcript", "transcript"),
		Confidence: decodeNumber(alt, "confidence", "confidence"),
	}
	words, err := decodeObjectList(alt, "words", "words")
	if err != nil {
		return sentence, err
	}
	for _, w := range words {
		start, err := decodeOffsetSeconds(w, "startTime", "start_time")
		if err != nil {
			return sentence, err
		}
		end, err := decodeOffsetSeconds(w, "endTime", "end_time")
		if err != nil {
			return sentence, err
		}
		sentence.Words = append(sentence.Words, repository.TranscriptWord{
			Word:       decodeString(w, "word", "word"),
			StartTime:  start,
			EndTime:    end,
			Confidence: decodeNumber(w, "confidence", "confidence"),
		})
	}
	return sentence, nil
}

func decodeObjectList(o rawObject, camel, snake string) ([]rawObject, error) {
	raw, ok := o.pick(camel, snake)
	if !ok {
		return nil, nil
	}
	var list []rawObject
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", camel, err)
	}
	return list, nil
}

func decodeString(o rawObject, camel, snake string) string {
	raw, ok := o.pick(camel, snake)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeNumber(o rawObject, camel, snake string) float64 {
	raw, ok := o.pick(camel, snake)
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return f
}

// decodeOffsetSeconds accepts the provider's two duration encodings: the
// JSON string form "12.5s" and the object form {"seconds": 12, "nanos": ...}.
func decodeOffsetSeconds(o rawObject, camel, snake string) (float64, error) {
	raw, ok := o.pick(camel, snake)
	if !ok {
		return 0, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		trimmed := strings.TrimSuffix(s, "s")
		seconds, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", s, err)
		}
		return seconds, nil
	}

	var obj struct {
		Seconds int64 `json:"seconds"`
		Nanos   int64 `json:"nanos"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("parse duration object: %w", err)
	}
	return float64(obj.Seconds) + float64(obj.Nanos)/1e9, nil
}
