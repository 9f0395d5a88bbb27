package reddit

import (
	"encoding/json"
	"strings"
	"testing"
)

func commentJSON(name, parentHint, body string, score int, replies string) string {
	if replies == "" {
		replies = `""`
	}
	return `{"kind":"t1","data":{"name":"` + name + `","author":"user_` + parentHint + `","body":"` + body + `","score":` + itoa(score) + `,"created_utc":1700000000,"replies":` + replies + `}}`
}

func listingJSON(children ...string) string {
	return `{"kind":"Listing","data":{"children":[` + strings.Join(children, ",") + `]}}`
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func mustListing(t *testing.T, raw string) *listingEnvelope {
	t.Helper()
	var listing listingEnvelope
	if err := json.Unmarshal([]byte(raw), &listing); err != nil {
		t.Fatalf("не удалось разобрать фикстуру: %v", err)
	}
	return &listing
}

func TestExtractFlattensAllNodes(t *testing.T) {
	// дерево: c1 → (c2 → c4), c3 — всего 4 узла
	raw := listingJSON(
		commentJSON("t1_c1", "a", "первый", 5,
			listingJSON(
				commentJSON("t1_c2", "b", "ответ", 3,
					listingJSON(commentJSON("t1_c4", "d", "глубокий ответ", 2, ""))),
				commentJSON("t1_c3", "c", "ещё ответ", -4, ""),
			)),
	)
	comments := extractComments(mustListing(t, raw), "t3_post")
	if len(comments) != 4 {
		t.Fatalf("ожидали 4 комментария, получили %d", len(comments))
	}

	byID := map[string]int{}
	for i, c := range comments {
		byID[c.ExternalID] = i
	}

	// порядок обхода в глубину с сохранением исходного порядка детей
	wantOrder := []string{"t1_c1", "t1_c2", "t1_c4", "t1_c3"}
	for i, id := range wantOrder {
		if comments[i].ExternalID != id {
			t.Fatalf("позиция %d: ожидали %s, получили %s", i, id, comments[i].ExternalID)
		}
	}

	if comments[byID["t1_c1"]].Depth != 0 || comments[byID["t1_c2"]].Depth != 1 || comments[byID["t1_c4"]].Depth != 2 || comments[byID["t1_c3"]].Depth != 1 {
		t.Fatalf("неверные глубины: %+v", comments)
	}

	// цепочка родителей заканчивается на идентификаторе поста
	if comments[byID["t1_c1"]].ParentID != "t3_post" {
		t.Fatalf("родитель верхнего уровня должен быть постом")
	}
	if comments[byID["t1_c2"]].ParentID != "t1_c1" || comments[byID["t1_c4"]].ParentID != "t1_c2" || comments[byID["t1_c3"]].ParentID != "t1_c1" {
		t.Fatalf("неверные родители: %+v", comments)
	}
}

func TestExtractEmptyRepliesIsLeaf(t *testing.T) {
	raw := listingJSON(commentJSON("t1_only", "a", "без ответов", 2, ""))
	comments := extractComments(mustListing(t, raw), "t3_post")
	if len(comments) != 1 {
		t.Fatalf("ожидали 1 комментарий, получили %d", len(comments))
	}
}

func TestExtractSkipsMoreNodes(t *testing.T) {
	raw := listingJSON(
		commentJSON("t1_c1", "a", "текст", 2, ""),
		`{"kind":"more","data":{"count":12,"children":["abc","def"]}}`,
	)
	comments := extractComments(mustListing(t, raw), "t3_post")
	if len(comments) != 1 {
		t.Fatalf("узлы more не комментарии, ожидали 1, получили %d", len(comments))
	}
}

func TestExtractNilListing(t *testing.T) {
	if got := extractComments(nil, "t3_post"); len(got) != 0 {
		t.Fatalf("ожидали пустой результат, получили %d", len(got))
	}
}
