package swarm

import (
	"github.com/gekko3d/swarm/render/mesh"
)

type meshAsset struct {
	version uint
	mesh    *mesh.Mesh
}

// AssetServer owns the CPU side of every mesh. The render side uploads a mesh
// the first time it sees it and again whenever its version moves.
type AssetServer struct {
	meshes  map[mesh.Id]*meshAsset
	removed []mesh.Id
}

type AssetServerModule struct{}

func NewAssetServer() *AssetServer {
	return &AssetServer{meshes: make(map[mesh.Id]*meshAsset)}
}

func (server *AssetServer) LoadMesh(m *mesh.Mesh) mesh.Id {
	id := mesh.NewId()
	server.meshes[id] = &meshAsset{mesh: m}
	return id
}

// ReplaceMesh swaps the geometry behind id. It reports false for unknown ids.
func (server *AssetServer) ReplaceMesh(id mesh.Id, m *mesh.Mesh) bool {
	asset, ok := server.meshes[id]
	if !ok {
		return false
	}
	asset.mesh = m
	asset.version++
	return true
}

func (server *AssetServer) RemoveMesh(id mesh.Id) {
	if _, ok := server.meshes[id]; !ok {
		return
	}
	delete(server.meshes, id)
	server.removed = append(server.removed, id)
}

func (server *AssetServer) Mesh(id mesh.Id) (*mesh.Mesh, bool) {
	asset, ok := server.meshes[id]
	if !ok {
		return nil, false
	}
	return asset.mesh, true
}

func (server *AssetServer) MeshCount() int {
	return len(server.meshes)
}

// takeRemoved returns the ids removed since the last call.
func (server *AssetServer) takeRemoved() []mesh.Id {
	removed := server.removed
	server.removed = nil
	return removed
}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewAssetServer())
}
