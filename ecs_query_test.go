package swarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuery_Map(t *testing.T) {
	type Comp1 struct{ a int }
	type Comp2 struct{ b float32 }
	type Comp3 struct{}

	ecs := MakeEcs()
	ecs.addEntity(Comp1{a: 1})
	id2 := ecs.addEntity(Comp1{a: 2}, Comp2{b: 1.37})
	id3 := ecs.addEntity(Comp1{a: 3}, Comp2{b: 4.20}, Comp3{})
	ecs.addEntity(Comp1{a: 4}, Comp3{})
	ecs.addEntity(Comp2{b: 3.14})

	got := map[EntityId]int{}
	Query2[Comp1, Comp2]{ecs: &ecs}.Map(func(eid EntityId, c1 *Comp1, c2 *Comp2) bool {
		got[eid] = c1.a
		return true
	})

	assert.Equal(t, map[EntityId]int{id2: 2, id3: 3}, got)
}

func TestQuery_MapOptional(t *testing.T) {
	type Mesh struct{ id int }
	type Transform struct{ x float32 }

	ecs := MakeEcs()
	with := ecs.addEntity(Mesh{1}, Transform{5})
	without := ecs.addEntity(Mesh{2})
	ecs.addEntity(Transform{9})

	got := map[EntityId]*Transform{}
	Query2[Mesh, Transform]{ecs: &ecs}.Map(func(eid EntityId, m *Mesh, tr *Transform) bool {
		got[eid] = tr
		return true
	}, Transform{})

	assert.Len(t, got, 2)
	if assert.NotNil(t, got[with]) {
		assert.Equal(t, float32(5), got[with].x)
	}
	assert.Nil(t, got[without])
}

func TestQuery_MapStopsEarly(t *testing.T) {
	type Tag struct{ n int }

	ecs := MakeEcs()
	for i := range 10 {
		ecs.addEntity(Tag{i})
	}

	visits := 0
	Query1[Tag]{ecs: &ecs}.Map(func(EntityId, *Tag) bool {
		visits++
		return visits < 3
	})
	assert.Equal(t, 3, visits)
}

func TestQuery_Map3WritesThrough(t *testing.T) {
	type A struct{ v int }
	type B struct{ v int }
	type C struct{ v int }

	app := NewAppBuilder().Build()
	cmd := app.Commands()
	id := cmd.AddEntity(A{1}, B{2}, C{3})
	app.FlushCommands()

	MakeQuery3[A, B, C](cmd).Map(func(eid EntityId, a *A, b *B, c *C) bool {
		c.v = a.v + b.v
		return true
	})

	var sum int
	MakeQuery1[C](cmd).Map(func(eid EntityId, c *C) bool {
		assert.Equal(t, id, eid)
		sum = c.v
		return true
	})
	assert.Equal(t, 3, sum)
}
