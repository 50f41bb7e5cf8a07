package session

import (
	"regexp"
	"strconv"
	"strings"

	"sevenstream/internal/logging"
)

var (
	infoPattern      = regexp.MustCompile(`^(?P<key>[A-Za-z][^=:]*?)(?: = |: +)(?P<value>.*\S)\s*$`)
	infoSplitPattern = regexp.MustCompile(`,\s+#\s+`)
	rulePattern      = regexp.MustCompile(`^-{3,}(?: +-{3,})*$`)
	progressPattern  = regexp.MustCompile(`^\s*(?P<percent>\d{1,3})%(?:\s+(?P<count>\d+))?(?:\s+(?:(?P<symbol>[=TU+R.\-DA@#])\s+)?(?P<file>\S.*?))?\s*$`)
	symbolPattern    = regexp.MustCompile(`^(?P<symbol>[=TU+R.\-DA@#]) (?P<file>.+)$`)
	hashRowPattern   = regexp.MustCompile(`^(?P<hash>[0-9A-Fa-f]+)?\s+(?P<size>\d+)?\s+(?P<file>\S.*)$`)
	listRowPattern   = regexp.MustCompile(`^(?P<modified>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})?\s+(?P<attr>[D.][R.][H.][S.][A.])\s+(?P<size>\d+)?\s+(?P<packed>\d+)?\s+(?P<file>\S.*)$`)
)

const endOfBodyMarker = "Everything is Ok"

// operationKeys maps the header line naming the running operation to the
// shape of its body lines.
var operationKeys = map[string]DataType{
	"Creating archive":   DataSymbol,
	"Updating archive":   DataSymbol,
	"Extracting archive": DataSymbol,
	"Testing archive":    DataSymbol,
	"Listing archive":    DataList,
}

var symbolStatus = map[string]string{
	"+": "add",
	"U": "update",
	"=": "replicate",
	"R": "repack",
	".": "skip",
	"D": "delete",
	"A": "analyze",
	"@": "header",
	"#": "hash",
	"-": "extract",
	"T": "test",
}

// SymbolStatus names the operation behind a 7-Zip file status symbol.
func SymbolStatus(symbol string) string {
	return symbolStatus[symbol]
}

type infoPair struct {
	key   string
	value string
}

func parseInfoPair(text string) (infoPair, bool) {
	match := infoPattern.FindStringSubmatch(text)
	if match == nil {
		return infoPair{}, false
	}
	key := strings.TrimSpace(match[infoPattern.SubexpIndex("key")])
	if key == "" {
		return infoPair{}, false
	}
	return infoPair{key: key, value: strings.TrimSpace(match[infoPattern.SubexpIndex("value")])}, true
}

// parseInfoLine recognises "Key: Value", "Key = Value" and two such pairs
// joined by the ",  # " column delimiter.
func parseInfoLine(line string) ([]infoPair, bool) {
	if parts := infoSplitPattern.Split(line, 2); len(parts) == 2 {
		first, okFirst := parseInfoPair(parts[0])
		second, okSecond := parseInfoPair(parts[1])
		if okFirst && okSecond {
			return []infoPair{first, second}, true
		}
	}
	pair, ok := parseInfoPair(line)
	if !ok {
		return nil, false
	}
	return []infoPair{pair}, true
}

func isRule(line string) bool {
	return rulePattern.MatchString(strings.TrimSpace(line))
}

func isBodyShaped(line string) bool {
	return symbolPattern.MatchString(line) || progressPattern.MatchString(line)
}

// matchInfo merges metadata lines into the record. Symbol lines and the rows
// of hash and listing bodies can look like metadata when a file name contains
// ": ", so those are left to the body matchers.
func matchInfo(s *Session, line string) bool {
	rec := s.record
	if rec.DataType == DataSymbol && rec.Stage != StageFooters && isBodyShaped(line) {
		return false
	}
	if rec.Stage == StageBody {
		switch rec.DataType {
		case DataHash:
			if hashRowPattern.MatchString(line) {
				return false
			}
		case DataList:
			if listRowPattern.MatchString(line) {
				return false
			}
		}
	}
	pairs, ok := parseInfoLine(line)
	if !ok {
		return false
	}
	if rec.Stage == StageBody && rec.DataType == DataTechList {
		for _, pair := range pairs {
			s.techEntryField(pair.key, pair.value)
		}
		return true
	}
	for _, pair := range pairs {
		rec.Info.Set(pair.key, pair.value)
		if dataType, ok := operationKeys[pair.key]; ok && rec.setDataType(dataType) {
			s.logger.Debug("data type inferred", logging.String(logging.FieldDataType, string(dataType)), logging.String("key", pair.key))
		}
		s.emit(Event{Kind: EventInfo, Key: pair.key, Value: pair.value})
	}
	return true
}

// matchEndOfHeaders reports whether line closes the header block. For the
// symbol data type the block ends at the first body-shaped line; the stage
// advances but the caller must still classify that line as body content.
func matchEndOfHeaders(s *Session, line string) bool {
	rec := s.record
	if rec.Stage != StageHeaders {
		return false
	}
	if rec.DataType == DataSymbol {
		if !isBodyShaped(line) {
			return false
		}
		s.advance(StageBody)
		return true
	}
	if !isRule(line) {
		return false
	}
	s.advance(StageBody)
	return true
}

func matchEndOfBody(s *Session, line string) bool {
	if s.record.Stage != StageBody {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if trimmed != endOfBodyMarker && !isRule(trimmed) {
		return false
	}
	s.flushTechEntry()
	s.advance(StageFooters)
	return true
}

func matchProgress(s *Session, line string) bool {
	if s.record.Stage != StageBody {
		return false
	}
	progress, ok := parseProgress(line)
	if !ok {
		return false
	}
	s.record.Progress = progress
	s.emit(Event{Kind: EventProgress, Progress: progress.clone()})
	return true
}

func parseProgress(line string) (*Progress, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false
	}
	percent, err := strconv.Atoi(match[progressPattern.SubexpIndex("percent")])
	if err != nil {
		return nil, false
	}
	if percent > 100 {
		percent = 100
	}
	progress := &Progress{
		Percent:  percent,
		Symbol:   match[progressPattern.SubexpIndex("symbol")],
		FileName: strings.TrimSpace(match[progressPattern.SubexpIndex("file")]),
	}
	if raw := match[progressPattern.SubexpIndex("count")]; raw != "" {
		if count, err := strconv.Atoi(raw); err == nil {
			progress.FileCount = &count
		}
	}
	return progress, true
}

// matchBodyData handles every remaining body line. It never changes the
// stage; lines it cannot interpret are dropped.
func matchBodyData(s *Session, line string) bool {
	if s.record.Stage != StageBody {
		return false
	}
	var entry *Entry
	switch s.record.DataType {
	case DataSymbol:
		entry = parseSymbolLine(line)
	case DataHash:
		entry = parseHashRow(line)
	case DataList:
		entry = parseListRow(line)
	case DataTechList:
		if strings.TrimSpace(line) == "" {
			s.flushTechEntry()
			return true
		}
	default:
		entry = parseSymbolLine(line)
	}
	if entry == nil {
		if strings.TrimSpace(line) != "" {
			s.logger.Debug("unrecognized body line", logging.String("line", line))
		}
		return false
	}
	s.emit(Event{Kind: EventData, Entry: entry})
	return true
}

func parseSymbolLine(line string) *Entry {
	match := symbolPattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}
	symbol := match[symbolPattern.SubexpIndex("symbol")]
	return &Entry{
		Symbol: symbol,
		Status: SymbolStatus(symbol),
		File:   strings.TrimSpace(match[symbolPattern.SubexpIndex("file")]),
	}
}

func parseHashRow(line string) *Entry {
	match := hashRowPattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}
	return &Entry{
		Hash: match[hashRowPattern.SubexpIndex("hash")],
		Size: parseSize(match[hashRowPattern.SubexpIndex("size")]),
		File: strings.TrimSpace(match[hashRowPattern.SubexpIndex("file")]),
	}
}

func parseListRow(line string) *Entry {
	match := listRowPattern.FindStringSubmatch(line)
	if match == nil {
		return nil
	}
	return &Entry{
		Modified:   match[listRowPattern.SubexpIndex("modified")],
		Attributes: match[listRowPattern.SubexpIndex("attr")],
		Size:       parseSize(match[listRowPattern.SubexpIndex("size")]),
		PackedSize: parseSize(match[listRowPattern.SubexpIndex("packed")]),
		File:       strings.TrimSpace(match[listRowPattern.SubexpIndex("file")]),
	}
}

func parseSize(raw string) *int64 {
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &value
}

// techEntryField adds one "Key = Value" line of a technical listing to the
// entry being assembled. A "Path" key starts a new entry.
func (s *Session) techEntryField(key, value string) {
	if key == "Path" {
		s.flushTechEntry()
	}
	if s.techEntry == nil {
		s.techEntry = &Entry{Fields: map[string]string{}}
	}
	entry := s.techEntry
	entry.Fields[key] = value
	switch key {
	case "Path":
		entry.File = value
	case "Size":
		entry.Size = parseSize(value)
	case "Packed Size":
		entry.PackedSize = parseSize(value)
	case "Modified":
		entry.Modified = value
	case "Attributes":
		entry.Attributes = value
	case "CRC":
		entry.Hash = value
	}
}

func (s *Session) flushTechEntry() {
	if s.techEntry == nil {
		return
	}
	entry := s.techEntry
	s.techEntry = nil
	s.emit(Event{Kind: EventData, Entry: entry})
}
